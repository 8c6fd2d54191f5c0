package engine

import (
	"context"
	"sync"

	"github.com/Ezekail/novelcrawler/collect"
	"github.com/Ezekail/novelcrawler/rule"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Task 一个独立的翻页任务。Page 不为空时直接从该页开始，否则先抓取 URL
type Task struct {
	ID   string
	URL  string
	Rule *rule.ContentRule
	Page *collect.Page
}

type TaskResult struct {
	Task   *Task
	Result *Result
	Err    error
}

// Schedule runs independent pagination tasks on WorkCount workers. All
// workers share one Paginator, so compiled patterns are reused across tasks.
type Schedule struct {
	requestCh chan *Task      // 负责接收任务
	workCh    chan *Task      // 负责分配任务给 worker
	out       chan TaskResult // 负责输出翻页结果
	done      chan struct{}
	closeOnce sync.Once
	paginator *Paginator
	options
}

func NewSchedule(opts ...Option) *Schedule {
	s := &Schedule{
		requestCh: make(chan *Task),
		workCh:    make(chan *Task),
		out:       make(chan TaskResult),
		done:      make(chan struct{}),
	}
	s.options = newOptions(opts)
	s.paginator = &Paginator{options: s.options}
	return s
}

// Submit queues tasks. It returns false once the schedule is closed.
func (s *Schedule) Submit(tasks ...*Task) bool {
	for _, t := range tasks {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
		select {
		case s.requestCh <- t:
		case <-s.done:
			return false
		}
	}
	return true
}

// Results delivers one TaskResult per finished task.
func (s *Schedule) Results() <-chan TaskResult {
	return s.out
}

// Close stops the scheduler and its workers. Tasks still queued are dropped.
func (s *Schedule) Close() {
	s.closeOnce.Do(func() {
		close(s.done)
	})
}

// Run starts the workers and dispatches tasks until ctx is done or Close is called.
func (s *Schedule) Run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	go func() {
		select {
		case <-s.done:
			cancel()
		case <-ctx.Done():
		}
	}()

	var wg sync.WaitGroup
	// 创建指定数量的 worker，完成实际任务的处理
	for i := 0; i < s.WorkCount; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			s.CreateWork(ctx)
		}()
	}
	s.Schedule(ctx)
	wg.Wait()
}

// Schedule 接收任务并完成任务的调度
func (s *Schedule) Schedule(ctx context.Context) {
	var queue = append([]*Task(nil), s.Seeds...)
	for _, t := range queue {
		if t.ID == "" {
			t.ID = uuid.NewString()
		}
	}
	for {
		var task *Task
		var ch chan *Task
		// 队列不为空，证明有待执行的任务
		if len(queue) > 0 {
			task = queue[0]
			ch = s.workCh
		}
		select {
		// 接收来自外界的任务，并将任务存储到队列中
		case t := <-s.requestCh:
			queue = append(queue, t)
		// 将任务发送到 workCh 通道中，等待 worker 接收
		case ch <- task:
			queue = queue[1:]
		case <-ctx.Done():
			if len(queue) > 0 {
				s.Logger.Warn("schedule stopped with pending tasks", zap.Int("pending", len(queue)))
			}
			return
		}
	}
}

// CreateWork 接收调度器分配的任务，执行翻页并输出结果
func (s *Schedule) CreateWork(ctx context.Context) {
	for {
		var task *Task
		select {
		case task = <-s.workCh:
		case <-ctx.Done():
			return
		}
		var (
			res *Result
			err error
		)
		if task.Page != nil {
			res, err = s.paginator.Run(ctx, task.Rule, task.Page)
		} else {
			res, err = s.paginator.RunURL(ctx, task.Rule, task.URL)
		}
		if err != nil {
			s.Logger.Error("task failed",
				zap.String("task", task.ID),
				zap.Int("pages", res.Pages),
				zap.Error(err),
			)
		} else {
			s.Logger.Info("task done",
				zap.String("task", task.ID),
				zap.Int("pages", res.Pages),
				zap.Int("bytes", len(res.Content)),
			)
		}
		select {
		case s.out <- TaskResult{Task: task, Result: res, Err: err}:
		case <-ctx.Done():
			return
		}
	}
}
