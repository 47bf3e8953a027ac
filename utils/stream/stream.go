package stream

// Stream describes a stream of values
type Stream[T any] interface {
	// Next advances the stream. It must
	// be called once at the start to advance
	// to the first item in the stream. It returns
	// true if there is a value available
	// or false otherwise.
	Next() bool
	// Value returns the value at the current position
	// or the zero value if iteration is done.
	Value() T
}

// Processor is a function that returns a stream
// derived from a source stream.
type Processor[T any] func(Stream[T]) Stream[T]

// Pipeline connects a series of processors to a source
// stream and returns the derived stream. Nil processors
// are skipped so optional stages can be passed inline.
func Pipeline[T any](stream Stream[T], processors ...Processor[T]) Stream[T] {
	for _, processor := range processors {
		if processor == nil {
			continue
		}

		stream = processor(stream)
	}

	return stream
}

// Slice streams the elements of values in order
func Slice[T any](values []T) Stream[T] {
	return &sliceStream[T]{values: values, position: -1}
}

type sliceStream[T any] struct {
	values   []T
	position int
}

func (stream *sliceStream[T]) Next() bool {
	if stream.position < len(stream.values) {
		stream.position++
	}

	return stream.position < len(stream.values)
}

func (stream *sliceStream[T]) Value() T {
	var zero T

	if stream.position < 0 || stream.position >= len(stream.values) {
		return zero
	}

	return stream.values[stream.position]
}

// Collect drains stream and returns every value mapped
// through fn. It never returns nil.
func Collect[T any, R any](stream Stream[T], fn func(T) R) []R {
	results := []R{}

	for stream.Next() {
		results = append(results, fn(stream.Value()))
	}

	return results
}
