package contact

import "sync"

// task maps fn over data across workersCount goroutines, preserving order in
// the result slice. With one worker it degenerates to a plain loop.
func task[T, R any](workersCount int, data []T, fn func(data T) R) []R {
	results := make([]R, len(data))
	if workersCount <= 1 || len(data) < 2 {
		for i, d := range data {
			results[i] = fn(d)
		}
		return results
	}

	var wg sync.WaitGroup
	dataSize := len(data)
	chunkSize := (dataSize + workersCount - 1) / workersCount

	for workerID := 0; workerID < workersCount; workerID++ {
		wg.Add(1)
		go func(start, end int) {
			defer wg.Done()
			for i := start; i < end; i++ {
				results[i] = fn(data[i])
			}
		}(workerID*chunkSize, min((workerID+1)*chunkSize, dataSize))
	}
	wg.Wait()
	return results
}
