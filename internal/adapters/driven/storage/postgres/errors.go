package postgres

import (
	"database/sql/driver"
	"errors"
	"io"
	"net"

	"github.com/lib/pq"

	"github.com/custodia-labs/sercha-sync/internal/core/domain"
)

// classify wraps a driver error in a *domain.DatabaseError.
func classify(op string, err error) error {
	if err == nil {
		return nil
	}
	return &domain.DatabaseError{Op: op, Kind: errorKind(err), Err: err}
}

func errorKind(err error) domain.DBErrorKind {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		switch pqErr.Code.Class() {
		case "08", "53", "57":
			// connection exception, insufficient resources, operator intervention
			return domain.DBConnectivity
		case "23":
			return domain.DBConstraint
		}
		return domain.DBOther
	}
	if errors.Is(err, driver.ErrBadConn) || errors.Is(err, io.ErrUnexpectedEOF) {
		return domain.DBConnectivity
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return domain.DBConnectivity
	}
	return domain.DBOther
}
