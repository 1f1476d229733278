package jama

import (
	"fmt"
	"strconv"
	"time"
)

// envelope is the top-level container of every Jama REST response.
type envelope[T any] struct {
	Meta struct {
		Status   string    `json:"status"`
		PageInfo *pageInfo `json:"pageInfo,omitempty"`
	} `json:"meta"`
	Data T `json:"data"`
}

type pageInfo struct {
	StartIndex   int `json:"startIndex"`
	ResultCount  int `json:"resultCount"`
	TotalResults int `json:"totalResults"`
}

// ItemTypeDTO describes an item type and its field definitions.
type ItemTypeDTO struct {
	ID      int        `json:"id"`
	TypeKey string     `json:"typeKey"`
	Display string     `json:"display"`
	Fields  []FieldDTO `json:"fields"`
}

// FieldDTO is a field definition; Name is the key used inside item fields.
type FieldDTO struct {
	ID       int    `json:"id"`
	Name     string `json:"name"`
	Label    string `json:"label"`
	PickList int    `json:"pickList,omitempty"`
}

// PickListDTO is a pick list or one of its options.
type PickListDTO struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// ItemDTO is an abstract item, test run or test plan. Custom field keys are
// instance specific, so fields stay untyped.
type ItemDTO struct {
	ID           int            `json:"id"`
	DocumentKey  string         `json:"documentKey"`
	Project      int            `json:"project"`
	ItemType     int            `json:"itemType"`
	CreatedDate  string         `json:"createdDate"`
	ModifiedDate string         `json:"modifiedDate"`
	Archived     bool           `json:"archived"`
	Fields       map[string]any `json:"fields"`
}

// UserDTO is the subset of a user we display.
type UserDTO struct {
	ID        int    `json:"id"`
	Username  string `json:"username"`
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
}

func (f ItemDTO) str(name string) string {
	if name == "" {
		return ""
	}
	switch v := f.Fields[name].(type) {
	case nil:
		return ""
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	default:
		return fmt.Sprint(v)
	}
}

// id returns an integer field such as a pick-list option or user id.
func (f ItemDTO) id(name string) (int, bool) {
	if name == "" {
		return 0, false
	}
	switch v := f.Fields[name].(type) {
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

// ParseTime parses Jama's timestamp format.
func ParseTime(s string) (time.Time, error) {
	return time.Parse("2006-01-02T15:04:05.000-0700", s)
}

// parseDate accepts either a full timestamp or a plain date, in local time.
func parseDate(s string) (time.Time, error) {
	if t, err := ParseTime(s); err == nil {
		return t, nil
	}
	return time.ParseInLocation("2006-01-02", s, time.Local)
}
