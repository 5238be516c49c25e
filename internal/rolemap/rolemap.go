// Package rolemap binds semantic data roles to the fields that fill them.
package rolemap

import "slices"

// Role names.
const (
	Color     = "color"
	Size      = "size"
	Latitude  = "latitude"
	Longitude = "longitude"
	Tooltips  = "tooltips"
	Category  = "category"
)

// Aggregates carries column statistics supplied by the host. Their presence
// marks a field as continuous.
type Aggregates struct {
	Min *float64 `json:"min,omitempty"`
	Max *float64 `json:"max,omitempty"`
}

// Column is a bound data column as supplied by the host.
type Column struct {
	DisplayName string      `json:"displayName" doc:"Column display name, also the feature property key"`
	Roles       []string    `json:"roles" doc:"Roles this column fills (color, size, latitude, longitude, tooltips)"`
	Aggregates  *Aggregates `json:"aggregates,omitempty" doc:"Present for continuous (numeric) columns"`
	Format      string      `json:"format,omitempty" doc:"Display format string"`
}

// Field is one field bound to a role.
type Field struct {
	DisplayName string      `json:"displayName"`
	Aggregates  *Aggregates `json:"aggregates,omitempty"`
	Format      string      `json:"format,omitempty"`
}

// Continuous reports whether the field should be classified as a gradient.
func (f Field) Continuous() bool { return f.Aggregates != nil }

// RoleMap maps a role to its bound fields in column order. The zero value
// has no bindings.
type RoleMap struct {
	columns []Column
	roles   map[string][]Field
}

// New builds a RoleMap from columns.
func New(columns []Column) RoleMap {
	rm := RoleMap{columns: slices.Clone(columns), roles: make(map[string][]Field)}
	for _, c := range columns {
		f := Field{DisplayName: c.DisplayName, Aggregates: c.Aggregates, Format: c.Format}
		for _, r := range c.Roles {
			rm.roles[r] = append(rm.roles[r], f)
		}
	}
	return rm
}

// Get returns the index-th field bound to role.
func (rm RoleMap) Get(role string, index int) (Field, bool) {
	fields := rm.roles[role]
	if index < 0 || index >= len(fields) {
		return Field{}, false
	}
	return fields[index], true
}

// GetAll returns every field bound to role.
func (rm RoleMap) GetAll(role string) []Field {
	return slices.Clone(rm.roles[role])
}

// Has reports whether any field is bound to role.
func (rm RoleMap) Has(role string) bool { return len(rm.roles[role]) > 0 }

func (rm RoleMap) name(role string) string {
	if f, ok := rm.Get(role, 0); ok {
		return f.DisplayName
	}
	return ""
}

// Latitude returns the latitude property name, or "".
func (rm RoleMap) Latitude() string { return rm.name(Latitude) }

// Longitude returns the longitude property name, or "".
func (rm RoleMap) Longitude() string { return rm.name(Longitude) }

// Size returns the first size property name, or "".
func (rm RoleMap) Size() string { return rm.name(Size) }

// Color returns the index-th color field.
func (rm RoleMap) Color(index int) (Field, bool) { return rm.Get(Color, index) }

// Tooltips returns the tooltip fields in column order.
func (rm RoleMap) Tooltips() []Field { return rm.GetAll(Tooltips) }

// Columns returns the columns the map was built from.
func (rm RoleMap) Columns() []Column { return slices.Clone(rm.columns) }

// Format returns the display format of the column named displayName.
func (rm RoleMap) Format(displayName string) string {
	for _, c := range rm.columns {
		if c.DisplayName == displayName {
			return c.Format
		}
	}
	return ""
}
