package engine

// Assign returns the backend for each of n tasks: position i goes to
// available[i mod len(available)]. It returns nil when available is empty.
func Assign(n int, available []string) []string {
	if len(available) == 0 {
		return nil
	}
	out := make([]string, n)
	for i := range out {
		out[i] = available[i%len(available)]
	}
	return out
}

// PoolSize returns the number of concurrent workers for a batch. It defaults
// to the number of available backends; a positive maxWorkers caps it.
func PoolSize(maxWorkers, available int) int {
	if maxWorkers <= 0 || maxWorkers > available {
		return available
	}
	return maxWorkers
}
