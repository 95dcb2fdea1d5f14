package sqlite

import (
	"database/sql/driver"
	"errors"
	"net"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// Primary SQLite result codes.
const (
	codeBusy       = 5
	codeLocked     = 6
	codeIOErr      = 10
	codeCorrupt    = 11
	codeFull       = 13
	codeCantOpen   = 14
	codeProtocol   = 15
	codeConstraint = 19
)

// sqliteCoder matches the driver's *sqlite.Error.
type sqliteCoder interface {
	Code() int
}

// classify wraps a driver error in a *domain.DatabaseError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.DatabaseError{Op: op, Kind: errorKind(err), Err: err}
}

func errorKind(err error) domain.DBErrorKind {
	var coder sqliteCoder
	if errors.As(err, &coder) {
		// Extended codes carry the primary code in the low byte.
		switch coder.Code() & 0xff {
		case codeBusy, codeLocked, codeIOErr, codeCorrupt, codeFull, codeCantOpen, codeProtocol:
			return domain.DBConnectivity
		case codeConstraint:
			return domain.DBConstraint
		}
		return domain.DBOther
	}
	if errors.Is(err, driver.ErrBadConn) {
		return domain.DBConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.DBConnectivity
	}
	return domain.DBOther
}
