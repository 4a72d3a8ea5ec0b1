// Package equipment defines the equipment records that describe the physical
// devices managed by this repository and the XML configuration file that they
// are loaded from. Records are read once at startup and never modified.
package equipment

import (
	"fmt"
	"strconv"
	"strings"
)

// ConnectionRecord describes how to reach a physical device: the transport
// address (a serial port path such as "COM5" or "/dev/ttyUSB0") and a set of
// free-form transport properties (baud rate, panel-lock flag, ...).
type ConnectionRecord struct {
	Address    string     `xml:"address"`
	Properties []Property `xml:"properties>property"`
}

// Property is a single named connection property. Values are stored as text
// in the XML file and converted on access.
type Property struct {
	Name  string `xml:"name,attr"`
	Value string `xml:",chardata"`
}

// UserMap is a user-defined position→description map attached to a record,
// e.g. the installed gratings or filters of a monochromator.
type UserMap struct {
	Name  string    `xml:"name,attr"`
	Items []MapItem `xml:"item"`
}

// MapItem is one entry of a UserMap. The optional blaze and density
// attributes carry grating metadata; plain maps use the element text.
type MapItem struct {
	Key     int    `xml:"key,attr"`
	Blaze   string `xml:"blaze,attr"`
	Density string `xml:"density,attr"`
	Value   string `xml:",chardata"`
}

// Record identifies one physical device. A record is immutable for the
// lifetime of the wrapper instance constructed from it.
type Record struct {
	Alias        string           `xml:"alias,attr"`
	Manufacturer string           `xml:"manufacturer"`
	Model        string           `xml:"model"`
	Serial       string           `xml:"serial"`
	Description  string           `xml:"description"`
	Connection   ConnectionRecord `xml:"connection"`
	UserDefined  []UserMap        `xml:"user_defined>map"`
}

// StringProperty returns the named connection property, or fallback if the
// property is not present.
func (r *Record) StringProperty(name, fallback string) string {
	for _, p := range r.Connection.Properties {
		if p.Name == name {
			return strings.TrimSpace(p.Value)
		}
	}
	return fallback
}

// BoolProperty returns the named connection property as a bool, or fallback
// if the property is absent or not parseable.
func (r *Record) BoolProperty(name string, fallback bool) bool {
	s := r.StringProperty(name, "")
	if s == "" {
		return fallback
	}
	b, err := strconv.ParseBool(s)
	if err != nil {
		return fallback
	}
	return b
}

// IntProperty returns the named connection property as an int, or fallback
// if the property is absent or not parseable.
func (r *Record) IntProperty(name string, fallback int) int {
	s := r.StringProperty(name, "")
	if s == "" {
		return fallback
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return fallback
	}
	return n
}

// UserDefinedMap returns the named user-defined map as position→description,
// or nil if the map is not present in the record.
func (r *Record) UserDefinedMap(name string) map[int]string {
	for _, m := range r.UserDefined {
		if m.Name != name {
			continue
		}
		out := make(map[int]string, len(m.Items))
		for _, item := range m.Items {
			out[item.Key] = strings.TrimSpace(item.Value)
		}
		return out
	}
	return nil
}

// UserDefinedEntries returns the raw entries of the named user-defined map,
// or nil if the map is not present. Use this where the entry attributes
// matter; UserDefinedMap flattens to the element text only.
func (r *Record) UserDefinedEntries(name string) []MapItem {
	for _, m := range r.UserDefined {
		if m.Name == name {
			return m.Items
		}
	}
	return nil
}

// ToJSON converts the record to a plain mapping so it can be transmitted to
// remote callers through the RPC layer.
func (r *Record) ToJSON() map[string]interface{} {
	props := make(map[string]string, len(r.Connection.Properties))
	for _, p := range r.Connection.Properties {
		props[p.Name] = strings.TrimSpace(p.Value)
	}
	userDefined := make(map[string]map[string]string, len(r.UserDefined))
	for _, m := range r.UserDefined {
		entries := make(map[string]string, len(m.Items))
		for _, item := range m.Items {
			entries[strconv.Itoa(item.Key)] = strings.TrimSpace(item.Value)
		}
		userDefined[m.Name] = entries
	}
	return map[string]interface{}{
		"alias":        r.Alias,
		"manufacturer": r.Manufacturer,
		"model":        r.Model,
		"serial":       r.Serial,
		"description":  r.Description,
		"connection": map[string]interface{}{
			"address":    r.Connection.Address,
			"properties": props,
		},
		"user_defined": userDefined,
	}
}

// String returns a short identifier for log messages.
func (r *Record) String() string {
	return fmt.Sprintf("%s<%s|%s|%s>", r.Alias, r.Manufacturer, r.Model, r.Serial)
}
