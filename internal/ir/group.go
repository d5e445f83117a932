package ir

import (
	"strings"
)

// GroupField is one named component of a group key.
type GroupField struct {
	Name  string  `json:"name"`
	Value IRValue `json:"value"`
}

// GroupKey is the ordered tuple of group-defining values for a record.
//
// Two records are in the same group iff their keys are Equal. A nil or empty
// key is the single implicit group shared by every record of a collection
// that declares no group columns.
//
// Field order follows CollectionSpec.GroupBy and is significant.
type GroupKey []GroupField

// Equal reports whether two keys name the same group.
// IRNull compares equal to IRNull, matching "IS NULL" scoping in SQL.
func (k GroupKey) Equal(other GroupKey) bool {
	if len(k) != len(other) {
		return false
	}
	for i := range k {
		if k[i].Name != other[i].Name {
			return false
		}
		if !valuesEqual(k[i].Value, other[i].Value) {
			return false
		}
	}
	return true
}

// Get returns the value of the named field, or IRNull if absent.
func (k GroupKey) Get(name string) IRValue {
	for _, f := range k {
		if f.Name == name {
			return f.Value
		}
	}
	return IRNull{}
}

// Object renders the key as an IRObject, used for JSON output.
func (k GroupKey) Object() IRObject {
	obj := make(IRObject, len(k))
	for _, f := range k {
		obj[f.Name] = f.Value
	}
	return obj
}

// Hash returns a stable content-addressed identifier for the group.
// The implicit group hashes the empty array.
func (k GroupKey) Hash() string {
	arr := make(IRArray, 0, len(k))
	for _, f := range k {
		arr = append(arr, IRArray{IRString(f.Name), normalizeNull(f.Value)})
	}
	data, err := MarshalCanonical(arr)
	if err != nil {
		// Group values are restricted to scalars; a failure here means a
		// float slipped past validation. Hash the error text so the
		// value is still deterministic and visibly wrong in logs.
		data = []byte(err.Error())
	}
	return hashWithDomain(DomainGroup, data)
}

// String renders the key as "name=value,name=value", or "*" for the implicit group.
func (k GroupKey) String() string {
	if len(k) == 0 {
		return "*"
	}
	parts := make([]string, len(k))
	for i, f := range k {
		parts[i] = f.Name + "=" + Format(f.Value)
	}
	return strings.Join(parts, ",")
}

func normalizeNull(v IRValue) IRValue {
	if v == nil {
		return IRNull{}
	}
	return v
}

func valuesEqual(a, b IRValue) bool {
	if IsNull(a) || IsNull(b) {
		return IsNull(a) && IsNull(b)
	}
	switch av := a.(type) {
	case IRString:
		bv, ok := b.(IRString)
		return ok && av == bv
	case IRInt:
		bv, ok := b.(IRInt)
		return ok && av == bv
	case IRBool:
		bv, ok := b.(IRBool)
		return ok && av == bv
	default:
		ab, errA := MarshalCanonical(a)
		bb, errB := MarshalCanonical(b)
		return errA == nil && errB == nil && string(ab) == string(bb)
	}
}
