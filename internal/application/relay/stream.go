package relay

import (
	"context"
	"errors"
	"io"
	"iter"
	"sync"

	"webforge-ai-api/internal/infrastructure/llm"
	"webforge-ai-api/pkg/metrics"
)

// TokenStream 惰性产生的文本分片序列。Close 或取消上下文会中止上游传输并停止输出，
// 已经输出的分片不会回滚。
type TokenStream struct {
	ctx    context.Context
	cancel context.CancelFunc
	reader llm.ChunkReader
	model  string

	mu      sync.Mutex
	pending *string
	done    bool
	index   int
}

func newTokenStream(ctx context.Context, cancel context.CancelFunc, o opened, model string) *TokenStream {
	s := &TokenStream{ctx: ctx, cancel: cancel, reader: o.reader, model: model}
	if o.eof {
		s.finishLocked()
		return s
	}
	first := o.first
	s.pending = &first
	return s
}

// Recv 返回下一个分片；结束时返回 io.EOF，被取消时返回上下文错误
func (s *TokenStream) Recv() (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ctx.Err(); err != nil && !s.done {
		s.finishLocked()
		return "", err
	}
	if s.done {
		return "", io.EOF
	}
	if s.pending != nil {
		chunk := *s.pending
		s.pending = nil
		s.emitted()
		return chunk, nil
	}

	chunk, err := s.reader.Recv()
	if err != nil {
		// finishLocked 会取消 ctx，必须先取出调用方的取消状态
		ctxErr := s.ctx.Err()
		s.finishLocked()
		if errors.Is(err, io.EOF) {
			return "", io.EOF
		}
		if ctxErr != nil {
			return "", ctxErr
		}
		return "", err
	}
	s.emitted()
	return chunk, nil
}

// Index 已输出的分片数
func (s *TokenStream) Index() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.index
}

// Close 中止上游传输，可重复调用
func (s *TokenStream) Close() {
	s.cancel()
	s.mu.Lock()
	defer s.mu.Unlock()
	s.finishLocked()
}

// All 以 range-over-func 方式消费；提前 break 会关闭流
func (s *TokenStream) All() iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		defer s.Close()
		for {
			chunk, err := s.Recv()
			if errors.Is(err, io.EOF) {
				return
			}
			if !yield(chunk, err) || err != nil {
				return
			}
		}
	}
}

// Collect 读完整个流并拼接
func (s *TokenStream) Collect() (string, error) {
	var buf []byte
	for chunk, err := range s.All() {
		if err != nil {
			return string(buf), err
		}
		buf = append(buf, chunk...)
	}
	return string(buf), nil
}

func (s *TokenStream) emitted() {
	s.index++
	metrics.RelayChunks.WithLabelValues(s.model).Inc()
}

func (s *TokenStream) finishLocked() {
	if s.done && s.reader == nil {
		return
	}
	s.done = true
	s.pending = nil
	if s.reader != nil {
		s.reader.Close()
		s.reader = nil
	}
	s.cancel()
}
