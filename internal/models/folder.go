// Package models defines the domain types for arbor.
package models

import "encoding/json"

// Record is the flat representation of a folder exchanged with the folder service.
// ParentID is nil for a root-level folder.
type Record struct {
	ID       string  `json:"id"`
	Name     string  `json:"name"`
	ParentID *string `json:"parentId"`
}

// UnmarshalJSON accepts either "id" or "_id" as the identifier key.
// When both are present "id" wins.
func (r *Record) UnmarshalJSON(data []byte) error {
	var wire struct {
		ID       string  `json:"id"`
		MongoID  string  `json:"_id"`
		Name     string  `json:"name"`
		ParentID *string `json:"parentId"`
	}
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	r.ID = wire.ID
	if r.ID == "" {
		r.ID = wire.MongoID
	}
	r.Name = wire.Name
	r.ParentID = wire.ParentID
	return nil
}

// Node is one folder of the in-memory tree together with its children.
// Children are kept in insertion order.
type Node struct {
	ID       string `json:"id"`
	Name     string `json:"name"`
	Children []Node `json:"children"`
}

// NodeFromRecord converts a confirmed record into a childless node.
func NodeFromRecord(r Record) Node {
	return Node{ID: r.ID, Name: r.Name, Children: []Node{}}
}

// Ptr returns a pointer to s; handy for building ParentID values.
func Ptr(s string) *string {
	return &s
}
