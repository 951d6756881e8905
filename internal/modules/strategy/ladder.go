package strategy

// ReductionLadder returns the quantities to retry after a credit-limit
// rejection of start: each step halves the previous quantity, rounds it down
// to a multiple of divisor and clamps it to min. The ladder ends with min and
// is empty when start is already at or below min.
func ReductionLadder(start, min, divisor int) []int {
	if divisor <= 0 {
		divisor = 1
	}
	if min < 1 {
		min = 1
	}

	var ladder []int
	for q := start; q > min; {
		q = (q / 2) / divisor * divisor
		if q < min {
			q = min
		}
		ladder = append(ladder, q)
	}
	return ladder
}
