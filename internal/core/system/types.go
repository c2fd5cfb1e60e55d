package system

import "reflect"

// TypeID identifies a system type. It is the key for world lookup, group
// placement and ordering constraints.
//
// Go-typed systems get their identity from TypeOf. Systems whose behavior is
// defined by data (scripts, manifest groups) use NamedType.
type TypeID struct {
	name string
	rt   reflect.Type
}

var systemIface = reflect.TypeFor[System]()

// TypeOf returns the identity of T. Pointer types resolve to their element
// type, so TypeOf[Foo] and TypeOf[*Foo] are equal.
func TypeOf[T any]() TypeID {
	return typeID(reflect.TypeFor[T]())
}

func typeID(t reflect.Type) TypeID {
	for t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	name := t.String()
	if t.PkgPath() != "" && t.Name() != "" {
		name = t.PkgPath() + "." + t.Name()
	}
	return TypeID{name: name, rt: t}
}

// NamedType returns a data-defined system identity.
func NamedType(name string) TypeID {
	return TypeID{name: name}
}

// unknownType is a placeholder for a constraint target that names nothing.
// It never satisfies IsSystem.
func unknownType(name string) TypeID {
	return TypeID{name: name, rt: reflect.TypeFor[struct{}]()}
}

// UnknownType is the identity of an unresolvable name. Constraints that
// target it are reported and dropped when sorting.
func UnknownType(name string) TypeID { return unknownType(name) }

// IsSystem reports whether the identity denotes a System implementation.
func (t TypeID) IsSystem() bool {
	if t.rt == nil {
		return t.name != ""
	}
	return t.rt.Implements(systemIface) || reflect.PointerTo(t.rt).Implements(systemIface)
}

// IsZero reports whether t is the zero TypeID.
func (t TypeID) IsZero() bool { return t.name == "" && t.rt == nil }

func (t TypeID) String() string {
	if t.rt != nil && t.rt.Name() != "" && t.rt.PkgPath() != "" {
		return t.rt.String()
	}
	return t.name
}

// FullName is the package-qualified name used as the stable sort key.
func (t TypeID) FullName() string { return t.name }

// Named types implement this to override the reflected identity.
type typeNamer interface {
	SystemType() TypeID
}

func typeOfSystem(s System) TypeID {
	if n, ok := s.(typeNamer); ok {
		if id := n.SystemType(); !id.IsZero() {
			return id
		}
	}
	return typeID(reflect.TypeOf(s))
}
