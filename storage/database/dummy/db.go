package dummydb

import (
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/njautech/schoolhub/core"
	"github.com/njautech/schoolhub/core/assignment"
	"github.com/njautech/schoolhub/core/report"
	"github.com/njautech/schoolhub/core/submission"
	"github.com/njautech/schoolhub/core/user"
)

// DB is an in-memory stand-in for the relational store. A single lock guards every table,
// so a write that checks uniqueness or references sees a consistent state, as a transaction would.
type DB struct {
	sync.RWMutex
	users       map[string]*user.User
	assignments map[string]*assignment.Assignment
	submissions map[string]*submission.Submission
	reports     map[string]*report.Report
}

func Open() (*DB, error) {
	db := new(DB)
	db.reset()
	return db, nil
}

// Reset empties every table.
func (db *DB) Reset() {
	db.Lock()
	defer db.Unlock()
	db.reset()
}

func (db *DB) reset() {
	db.users = make(map[string]*user.User)
	db.assignments = make(map[string]*assignment.Assignment)
	db.submissions = make(map[string]*submission.Submission)
	db.reports = make(map[string]*report.Report)
}

func newID() string {
	return uuid.NewString()
}

func (db *DB) userRef(id string) user.Ref {
	if usr, ok := db.users[id]; ok {
		return user.Ref{ID: usr.ID, Name: usr.Name, Email: usr.Email}
	}
	return user.Ref{ID: id}
}

// comparers maps an ordering field to a three-way comparison of two rows.
type comparers[T any] map[string]func(a, b T) int

// sortRows orders rows by the known fields of orderings, falling back to `fallback`.
func sortRows[T any](rows []T, cmps comparers[T], orderings []core.DBOrdering, fallback core.DBOrdering) {
	ords := make([]core.DBOrdering, 0, len(orderings))
	for _, ord := range orderings {
		if _, ok := cmps[ord.Field]; ok {
			ords = append(ords, ord)
		}
	}
	if len(ords) == 0 {
		ords = append(ords, fallback)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		for _, ord := range ords {
			c := cmps[ord.Field](rows[i], rows[j])
			if c == 0 {
				continue
			}
			if ord.Ascending {
				return c < 0
			}
			return c > 0
		}
		return false
	})
}

func compareStrings(a, b string) int {
	return strings.Compare(a, b)
}

func compareInts(a, b int64) int {
	switch {
	case a < b:
		return -1
	case a > b:
		return 1
	}
	return 0
}
