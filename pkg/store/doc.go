// Package store wraps one backing data store behind a uniform
// begin/execute/commit/rollback/query/close contract. Drivers live in the
// pgstore, sqlstore and memstore subpackages.
package store

//go:generate mockgen -source=conn.go -destination=../mock/store/conn_mock.go -package=mock
//go:generate mockgen -source=handle.go -destination=../mock/store/handle_mock.go -package=mock
