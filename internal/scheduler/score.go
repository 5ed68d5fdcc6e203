package scheduler

import "dreambot/internal/domain"

// idle stands in for the previous job when nothing ran immediately before:
// an anonymous request on the default model.
var idle = domain.NewJob(domain.RawRequest{})

// Score rates a queued job for selection. Large batches are mildly penalised,
// a change of user is rewarded, a change of model is penalised and older
// entries win over newer ones.
func Score(job domain.Job, index int, previous *domain.Job) float64 {
	if previous == nil {
		previous = &idle
	}
	score := -float64(job.Count)/float64(domain.DefaultCount) - float64(index)
	if job.User() != previous.User() {
		score += 2
	}
	if job.Model != previous.Model {
		score -= 3
	}
	return score
}

// Select returns the index of the highest scoring job, preferring the lowest
// index on ties. It returns -1 for an empty queue.
func Select(queue []domain.Job, previous *domain.Job) int {
	best, bestScore := -1, 0.0
	for i, job := range queue {
		score := Score(job, i, previous)
		if best < 0 || score > bestScore {
			best, bestScore = i, score
		}
	}
	return best
}
