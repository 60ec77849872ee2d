// Package arm is an active-record style object mapper for relational
// databases. Application code declares a tabular schema per entity type
// (column types, primary key, required columns, translatable columns,
// file-backed columns, grouping columns and an ordering column), registers it
// with a Registry, and performs CRUD, ordered-position maintenance,
// multi-table JOIN hydration and field-level locale translation through the
// resulting Repository.
//
// The package itself only consumes collaborator interfaces (QueryBuilder,
// Conn, TypeConverter, Storage). Ready-made implementations live in the
// builder, dbc, typeconv and storage subpackages.
package arm
