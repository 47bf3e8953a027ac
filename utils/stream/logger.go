package stream

import "go.uber.org/zap"

// Log logs values as they pass through. describe turns a
// value into the fields of its log entry.
func Log[T any](logger *zap.Logger, message string, describe func(value T) []zap.Field) Processor[T] {
	return func(stream Stream[T]) Stream[T] {
		return &loggedStream[T]{stream, logger, message, describe}
	}
}

type loggedStream[T any] struct {
	Stream[T]
	logger   *zap.Logger
	message  string
	describe func(value T) []zap.Field
}

func (stream *loggedStream[T]) Next() bool {
	if !stream.Stream.Next() {
		return false
	}

	stream.logger.Debug(stream.message, stream.describe(stream.Value())...)

	return true
}
