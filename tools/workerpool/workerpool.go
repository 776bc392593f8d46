/* workerpool contains code to run a limited number of error handling goroutines concurrently.
 *
 * Copyright 2020 Google LLC
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     https://www.apache.org/licenses/LICENSE-2.0
 *
 *     Unless required by applicable law or agreed to in writing, software
 *     distributed under the License is distributed on an "AS IS" BASIS,
 *     WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 *     See the License for the specific language governing permissions and
 *     limitations under the License.
 */
package workerpool

import (
	"fmt"
	"sort"
	"sync"
)

// MultiErr contains multiple errors.
type MultiErr []error

// Error returns a string representation of the multi error.
func (m MultiErr) Error() string {
	return fmt.Sprint([]error(m))
}

// IndexErr is an error produced by the job for a particular index in Each.
type IndexErr struct {
	Index int
	Err   error
}

func (i IndexErr) Error() string {
	return fmt.Sprintf("job %d: %v", i.Index, i.Err)
}

// Unwrap returns the error produced by the job.
func (i IndexErr) Unwrap() error {
	return i.Err
}

// WorkerPool runs a limited number of error handling goroutines concurrently.
type WorkerPool struct {
	queue  chan func() error
	errors chan error
	result chan MultiErr
}

// Go will run the function.
func (w *WorkerPool) Go(f func() error) {
	w.queue <- f
}

// Wait stops accepting jobs, and waits for queue to be closed and all submitted jobs to finish and returns the errors.
func (w *WorkerPool) Wait() error {
	close(w.queue)
	me := <-w.result
	if len(me) == 0 {
		return nil
	}
	return me
}

// New returns a new worker pool. A concurrency of 0 or less means no limit.
func New(concurrency int) *WorkerPool {
	w := &WorkerPool{
		queue:  make(chan func() error),
		errors: make(chan error),
		result: make(chan MultiErr, 1),
	}

	// Errors are collected while jobs are still being queued.
	go func() {
		me := MultiErr{}
		for err := range w.errors {
			if err != nil {
				me = append(me, err)
			}
		}
		w.result <- me
	}()

	go func() {
		wg := &sync.WaitGroup{}
		tickets := make(chan struct{}, concurrency)
		for jobVar := range w.queue {
			job := jobVar
			if concurrency > 0 {
				tickets <- struct{}{}
			}
			wg.Add(1)
			go func() {
				err := job()
				if concurrency > 0 {
					<-tickets
				}
				w.errors <- err
				wg.Done()
			}()
		}
		wg.Wait()
		close(w.errors)
	}()
	return w
}

// Each runs f for every index in [0, n) using at most concurrency goroutines.
// Jobs finish in any order, so f should store its result by index.
// The returned MultiErr contains IndexErrs sorted by index.
func Each(concurrency, n int, f func(idx int) error) error {
	wp := New(concurrency)
	for idx := 0; idx < n; idx++ {
		jobIdx := idx
		wp.Go(func() error {
			if err := f(jobIdx); err != nil {
				return IndexErr{Index: jobIdx, Err: err}
			}
			return nil
		})
	}
	err := wp.Wait()
	if me, ok := err.(MultiErr); ok {
		sort.Slice(me, func(i, j int) bool {
			return me[i].(IndexErr).Index < me[j].(IndexErr).Index
		})
	}
	return err
}
