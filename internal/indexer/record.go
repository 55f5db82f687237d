// Package indexer builds flat, indexable property records from domain
// objects and maintains the full-text index table for them in bulk.
package indexer

import "sort"

// Record is the indexable representation of one domain object. Properties
// map a property name to sub-key/value pairs; scalar attributes use the
// empty sub-key, structured attributes (people) use person-derived sub-keys.
type Record struct {
	Key        int64
	Type       string
	ContextID  *int64
	Tags       string
	Properties map[string]map[string]string
}

// Row is one flattened index-table row produced from a Record.
type Row struct {
	Key         int64
	Type        string
	ContextID   *int64
	Tags        string
	Property    string
	Subproperty string
	Content     string
}

// Rows flattens the record into index-table rows. Output order is
// deterministic: properties and sub-keys are emitted in sorted order.
func (r *Record) Rows() []Row {
	props := make([]string, 0, len(r.Properties))
	for name := range r.Properties {
		props = append(props, name)
	}
	sort.Strings(props)

	var rows []Row
	for _, name := range props {
		subs := r.Properties[name]
		keys := make([]string, 0, len(subs))
		for sub := range subs {
			keys = append(keys, sub)
		}
		sort.Strings(keys)
		for _, sub := range keys {
			rows = append(rows, Row{
				Key:         r.Key,
				Type:        r.Type,
				ContextID:   r.ContextID,
				Tags:        r.Tags,
				Property:    name,
				Subproperty: sub,
				Content:     subs[sub],
			})
		}
	}
	return rows
}
