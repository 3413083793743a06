package domain

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// SchemaVersion is carried by every persisted Annotation so that older files can be detected.
type SchemaVersion struct {
	Major int
	Minor int
	Micro int
}

// CurrentVersion is written into every Annotation created by this module.
var CurrentVersion = SchemaVersion{Major: 0, Minor: 0, Micro: 3}

func (v SchemaVersion) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Micro)
}

// ParseSchemaVersion parses a dotted "major.minor.micro" literal.
func ParseSchemaVersion(s string) (SchemaVersion, error) {
	parts := strings.Split(strings.TrimSpace(s), ".")
	if len(parts) != 3 {
		return SchemaVersion{}, fmt.Errorf("%w: version %q must have three parts", ErrParse, s)
	}
	var nums [3]int
	for i, p := range parts {
		n, err := strconv.Atoi(p)
		if err != nil {
			return SchemaVersion{}, fmt.Errorf("%w: version %q: %v", ErrParse, s, err)
		}
		nums[i] = n
	}
	return SchemaVersion{Major: nums[0], Minor: nums[1], Micro: nums[2]}, nil
}

// EqualString compares v to a dotted literal; malformed literals never match.
func (v SchemaVersion) EqualString(s string) bool {
	other, err := ParseSchemaVersion(s)
	if err != nil {
		return false
	}
	return v == other
}

// MarshalJSON writes the version as a [major, minor, micro] array.
func (v SchemaVersion) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{v.Major, v.Minor, v.Micro})
}

// UnmarshalJSON accepts the array form or a dotted string.
func (v *SchemaVersion) UnmarshalJSON(data []byte) error {
	var arr []int
	if err := json.Unmarshal(data, &arr); err == nil {
		if len(arr) != 3 {
			return fmt.Errorf("%w: version array must have three elements, got %d", ErrParse, len(arr))
		}
		*v = SchemaVersion{Major: arr[0], Minor: arr[1], Micro: arr[2]}
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: version must be an array or a string", ErrParse)
	}
	parsed, err := ParseSchemaVersion(s)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}
