package domain

import "slices"

// Department is an organisational unit a requester belongs to.
type Department struct {
	Name string `json:"name" toml:"name" bson:"name"`
}

// Vehicle is a service vehicle that can be requested or assigned.
type Vehicle struct {
	Name  string `json:"name" toml:"name" bson:"name"`
	Plate string `json:"plate,omitempty" toml:"plate" bson:"plate,omitempty"`
}

// Catalog holds the reference lists the request form offers.
type Catalog struct {
	Departments []Department `json:"departments" toml:"departments"`
	Vehicles    []Vehicle    `json:"vehicles" toml:"vehicles"`
}

// HasDepartment reports whether name is a listed department.
// An empty catalog accepts anything.
func (c Catalog) HasDepartment(name string) bool {
	if len(c.Departments) == 0 {
		return true
	}
	return slices.ContainsFunc(c.Departments, func(d Department) bool { return d.Name == name })
}

// HasVehicle reports whether name is a listed vehicle.
// An empty catalog accepts anything.
func (c Catalog) HasVehicle(name string) bool {
	if len(c.Vehicles) == 0 {
		return true
	}
	return slices.ContainsFunc(c.Vehicles, func(v Vehicle) bool { return v.Name == name })
}
