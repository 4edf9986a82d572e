// Package board builds the ordered rubata board from the member turn order
// and the rosters they own.
package board

import (
	"fmt"
	"sort"

	"github.com/google/uuid"
	"github.com/pietro1412/fantacontratti/go/internal/models"
)

// Build interleaves each member's contracts round-robin by turn order. Round k
// takes the k-th contract of every member that still has one left.
func Build(order []uuid.UUID, members []models.Member, rosters []models.RosterContract) ([]models.BoardEntry, error) {
	if len(order) == 0 {
		return nil, fmt.Errorf("%w: turn order is empty", models.ErrInvalidInput)
	}

	known := make(map[uuid.UUID]bool, len(members))
	for _, m := range members {
		known[m.ID] = true
	}

	seen := make(map[uuid.UUID]bool, len(order))
	for _, id := range order {
		if !known[id] {
			return nil, fmt.Errorf("%w: turn order references unknown member %s", models.ErrInvalidInput, id)
		}
		if seen[id] {
			return nil, fmt.Errorf("%w: member %s appears twice in turn order", models.ErrInvalidInput, id)
		}
		seen[id] = true
	}

	byOwner := make(map[uuid.UUID][]models.BoardEntry, len(order))
	total := 0
	for _, r := range rosters {
		if !seen[r.MemberID] {
			continue
		}
		byOwner[r.MemberID] = append(byOwner[r.MemberID], entryFromContract(r))
		total++
	}
	if total == 0 {
		return nil, fmt.Errorf("%w: no eligible entries", models.ErrInvalidInput)
	}

	for _, entries := range byOwner {
		sortEntries(entries)
	}

	board := make([]models.BoardEntry, 0, total)
	for round := 0; len(board) < total; round++ {
		for _, id := range order {
			entries := byOwner[id]
			if round < len(entries) {
				board = append(board, entries[round])
			}
		}
	}

	return board, nil
}

func entryFromContract(r models.RosterContract) models.BoardEntry {
	return models.BoardEntry{
		RosterID:         r.ID,
		PlayerID:         r.PlayerID,
		PlayerName:       r.PlayerName,
		OwnerMemberID:    r.MemberID,
		ContractSalary:   r.Salary,
		ContractDuration: r.Duration,
		ContractClause:   r.Clause,
		BasePrice:        r.Clause + r.Salary,
	}
}

// most valuable first, then by name so boards are reproducible
func sortEntries(entries []models.BoardEntry) {
	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.BasePrice != b.BasePrice {
			return a.BasePrice > b.BasePrice
		}
		if a.PlayerName != b.PlayerName {
			return a.PlayerName < b.PlayerName
		}
		return a.RosterID.String() < b.RosterID.String()
	})
}
