package service

import "errors"

var (
	ErrDatasetNotFound = errors.New("dataset not found")
	ErrDatasetInUse    = errors.New("dataset has unfinished jobs")
	ErrJobNotFound     = errors.New("job not found")
	ErrJobNotComplete  = errors.New("job has not completed")
	ErrJobFinished     = errors.New("job already finished")
)
