package checksum

import "testing"

func TestSumStable(t *testing.T) {
	if Sum([]byte("a")) != Sum([]byte("a")) {
		t.Error("same input should give same sum")
	}
	if Sum([]byte("a")) == Sum([]byte("b")) {
		t.Error("different input should differ")
	}
}

func TestETagQuoted(t *testing.T) {
	tag := ETag([]byte("[]"))
	if len(tag) != 66 || tag[0] != '"' || tag[len(tag)-1] != '"' {
		t.Errorf("etag = %s", tag)
	}
}
