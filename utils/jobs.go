package utils

// Bounded semaphore used by the sweeps to cap concurrent jobs
type JobPool struct {
	jobs chan struct{}
}

func (p *JobPool) Get() {
	<-p.jobs
}

func (p *JobPool) Put() {
	p.jobs <- struct{}{}
}

func NewJobPool(size int) (j *JobPool) {
	if size < 1 {
		size = 1
	}
	j = &JobPool{jobs: make(chan struct{}, size)}
	for range size {
		j.jobs <- struct{}{}
	}
	return j
}
