// Package apportion implements the CSE seat computation: the legal
// headcount-to-seats table (Code du travail, art. R2314-1) and proportional
// seat allocation by electoral quotient then highest average
// (art. R2314-19 and R2314-20).
//
// Everything here is pure computation; degenerate inputs (no votes, zero
// seats, headcount below the 11-employee threshold) return empty results,
// never an error.
package apportion

import (
	"math"
	"sort"
)

type seatBand struct {
	min, max, seats int
}

// seatBands is the legal table of titular CSE seats per headcount bracket.
// Bounds are inclusive. Headcounts of 10000 and above get maxSeats.
var seatBands = []seatBand{
	{11, 24, 1},
	{25, 49, 2},
	{50, 74, 4},
	{75, 99, 5},
	{100, 124, 6},
	{125, 149, 7},
	{150, 174, 8},
	{175, 199, 9},
	{200, 249, 10},
	{250, 299, 11},
	{300, 399, 11},
	{400, 499, 12},
	{500, 599, 13},
	{600, 699, 14},
	{700, 799, 14},
	{800, 899, 15},
	{900, 999, 16},
	{1000, 1249, 17},
	{1250, 1499, 18},
	{1500, 1749, 20},
	{1750, 1999, 21},
	{2000, 2249, 22},
	{2250, 2499, 23},
	{2500, 2999, 24},
	{3000, 3499, 25},
	{3500, 3749, 26},
	{3750, 3999, 26},
	{4000, 4249, 26},
	{4250, 4499, 27},
	{4500, 4749, 27},
	{4750, 4999, 28},
	{5000, 5249, 29},
	{5250, 5499, 29},
	{5500, 5749, 29},
	{5750, 5999, 30},
	{6000, 6749, 31},
	{6750, 7499, 32},
	{7500, 8999, 33},
	{9000, 9999, 34},
}

const maxSeats = 35

// SeatsForHeadcount returns the number of titular CSE seats for a company
// headcount. Below the 11-employee threshold there is no CSE delegation and
// the result is 0.
func SeatsForHeadcount(headcount int) int {
	if headcount < 11 {
		return 0
	}
	for _, b := range seatBands {
		if headcount >= b.min && headcount <= b.max {
			return b.seats
		}
	}
	return maxSeats
}

// positiveVotes filters out organizations with zero or missing votes and
// returns their labels in ascending order. Label order is the tie-break for
// the highest-average phase, so it must be deterministic.
func positiveVotes(votes map[string]int) []string {
	orgs := make([]string, 0, len(votes))
	for org, v := range votes {
		if v > 0 {
			orgs = append(orgs, org)
		}
	}
	sort.Strings(orgs)
	return orgs
}

// quotientSeats allocates floor(votes/quotient) seats per organization, with
// quotient = totalVotes/totalSeats (art. R2314-19). Returns the allocation
// and the number of seats handed out.
func quotientSeats(votes map[string]int, orgs []string, totalSeats int) (map[string]int, int) {
	seats := make(map[string]int, len(orgs))
	if len(orgs) == 0 || totalSeats <= 0 {
		return seats, 0
	}
	totalVotes := 0
	for _, org := range orgs {
		totalVotes += votes[org]
	}
	quotient := float64(totalVotes) / float64(totalSeats)
	allocated := 0
	for _, org := range orgs {
		s := int(math.Floor(float64(votes[org]) / quotient))
		seats[org] = s
		allocated += s
	}
	return seats, allocated
}

// QuotientOnly allocates seats by electoral quotient alone. Seats that the
// quotient does not fill stay unallocated; callers that cannot assume full
// candidate slates use this variant.
func QuotientOnly(votes map[string]int, totalSeats int) map[string]int {
	orgs := positiveVotes(votes)
	seats, _ := quotientSeats(votes, orgs, totalSeats)
	return seats
}

// Seats allocates every seat: electoral quotient first, then the remaining
// seats one at a time to the organization with the strictly highest average
// votes/(seats+1) (art. R2314-20). Ties go to the first organization in
// ascending label order. The returned counts always sum to totalSeats when
// at least one organization has positive votes and totalSeats > 0.
func Seats(votes map[string]int, totalSeats int) map[string]int {
	orgs := positiveVotes(votes)
	seats, allocated := quotientSeats(votes, orgs, totalSeats)
	if len(orgs) == 0 || totalSeats <= 0 {
		return seats
	}
	for allocated < totalSeats {
		best := ""
		bestAvg := -1.0
		for _, org := range orgs {
			avg := float64(votes[org]) / float64(seats[org]+1)
			if avg > bestAvg {
				bestAvg = avg
				best = org
			}
		}
		seats[best]++
		allocated++
	}
	return seats
}

// Election is the combined computation for one establishment: seat count
// from headcount, then full two-phase allocation.
type Election struct {
	TotalSeats int
	TotalVotes int
	SeatsByOrg map[string]int
}

// ForHeadcount derives the seat count from the legal table and allocates it
// across organizations. A headcount below the threshold, or a tally with no
// positive votes, yields an Election with an empty allocation.
func ForHeadcount(headcount int, votes map[string]int) Election {
	e := Election{
		TotalSeats: SeatsForHeadcount(headcount),
		SeatsByOrg: map[string]int{},
	}
	for _, org := range positiveVotes(votes) {
		e.TotalVotes += votes[org]
	}
	if e.TotalSeats == 0 || e.TotalVotes == 0 {
		return e
	}
	e.SeatsByOrg = Seats(votes, e.TotalSeats)
	return e
}
