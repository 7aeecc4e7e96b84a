//go:build windows

// internal/database/odbc.go
package database

import (
	_ "github.com/alexbrainman/odbc"
)
