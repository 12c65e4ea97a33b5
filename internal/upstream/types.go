package upstream

import (
	"bytes"
	"encoding/json"
	"fmt"
)

// ID is an identifier assigned by the labeling server. The server emits
// both numeric and string ids, so either JSON form is accepted.
type ID string

// UnmarshalJSON accepts a JSON string or number.
func (id *ID) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("id must be a string or number: %w", err)
	}
	*id = ID(n.String())
	return nil
}

// String returns the id as text.
func (id ID) String() string {
	return string(id)
}

// Project is a classification task known to the server.
type Project struct {
	ID   ID     `json:"id"`
	Name string `json:"name"`
}

// Batch is the server's record of unconsumed images for one label of a project.
// ID is the record acknowledged once the images are trained on.
type Batch struct {
	ID        ID `json:"id"`
	ProjectID ID `json:"projectId"`
	LabelNo   ID `json:"labelNo"`
}

// envelope is the response wrapper used by every endpoint.
type envelope struct {
	OK   *int            `json:"ok,omitempty"`
	Data json.RawMessage `json:"data"`
}

func (e envelope) hasData() bool {
	return len(e.Data) > 0 && !bytes.Equal(e.Data, []byte("null"))
}
