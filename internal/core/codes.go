package core

import (
	"fmt"

	"culturecore/pkg/domain"
)

// Display code prefixes. Codes take the shape PREFIX-YYYY-NNNN with a
// zero-padded sequence scoped to the calendar year. Sequence counters are
// transaction-scoped, so concurrent mints cannot collide and aborted
// transactions do not burn numbers.
const (
	processCodePrefix   = "PROC"
	deviationCodePrefix = "DEV"
	taskCodePrefix      = "TASK"
)

func mintCode(tx domain.Transaction, prefix string) (string, error) {
	year := tx.Now().UTC().Year()
	scope := fmt.Sprintf("%s-%d", prefix, year)
	seq, err := tx.NextSequence(scope)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%s-%d-%04d", prefix, year, seq), nil
}

func mintProcessCode(tx domain.Transaction) (string, error) {
	return mintCode(tx, processCodePrefix)
}

func mintDeviationCode(tx domain.Transaction) (string, error) {
	return mintCode(tx, deviationCodePrefix)
}

func mintTaskCode(tx domain.Transaction) (string, error) {
	return mintCode(tx, taskCodePrefix)
}
