package vegeconv

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/unixpickle/anyvec"
)

// Im2Row maps the sliding-window regions of an input
// tensor to the rows of a matrix.
//
// Row i of the matrix holds the window at the i-th (x, y)
// position of the output tensor of a Conv with the same
// window and strides.
//
// An Im2Row caches its mapping, so it must not be
// modified after its first use.
type Im2Row struct {
	WindowWidth  int
	WindowHeight int

	StrideX int
	StrideY int

	InputWidth  int
	InputHeight int
	InputDepth  int

	mapperLock sync.Mutex
	mapper     anyvec.Mapper
}

// InputSize returns the number of components in an input
// tensor.
func (m *Im2Row) InputSize() int {
	return m.InputWidth * m.InputHeight * m.InputDepth
}

// NumX returns the number of horizontal window positions.
func (m *Im2Row) NumX() int {
	return slidingCount(m.InputWidth, m.WindowWidth, m.StrideX)
}

// NumY returns the number of vertical window positions.
func (m *Im2Row) NumY() int {
	return slidingCount(m.InputHeight, m.WindowHeight, m.StrideY)
}

// MakeOut allocates a row matrix for the output of Map.
func (m *Im2Row) MakeOut(c anyvec.Creator) *anyvec.Matrix {
	rows := m.NumX() * m.NumY()
	cols := m.WindowWidth * m.WindowHeight * m.InputDepth
	return &anyvec.Matrix{Data: c.MakeVector(rows * cols), Rows: rows, Cols: cols}
}

// MapAll maps each input tensor packed in "in" to a row
// matrix and calls f with it, in order.
//
// The matrix is reused between calls, so f must not keep
// a reference to it.
func (m *Im2Row) MapAll(in anyvec.Vector, f func(idx int, m *anyvec.Matrix)) {
	m.mapImpl(in, f, false)
}

// MapParallel is like MapAll, except that f may be called
// concurrently and out of order.
func (m *Im2Row) MapParallel(in anyvec.Vector, f func(idx int, m *anyvec.Matrix)) {
	m.mapImpl(in, f, true)
}

func (m *Im2Row) mapImpl(in anyvec.Vector, f func(idx int, m *anyvec.Matrix),
	parallel bool) {
	inSize := m.InputSize()
	if in.Len()%inSize != 0 {
		panic(fmt.Sprintf("input length %d not divisible by %d", in.Len(), inSize))
	}

	mapper := m.Mapper(in.Creator())
	mapAndCall := func(i int, m *anyvec.Matrix) {
		mapper.Map(in.Slice(inSize*i, inSize*(i+1)), m.Data)
		f(i, m)
	}

	n := in.Len() / inSize
	if parallel {
		m.CallParallel(in.Creator(), n, mapAndCall)
	} else {
		m.CallAll(in.Creator(), n, mapAndCall)
	}
}

// CallAll calls f n times in order with a scratch matrix
// of the row-matrix size.
// The matrix contents are arbitrary.
func (m *Im2Row) CallAll(c anyvec.Creator, n int, f func(int, *anyvec.Matrix)) {
	imageMat := m.MakeOut(c)
	for i := 0; i < n; i++ {
		f(i, imageMat)
	}
}

// CallParallel is like CallAll, but spreads the calls
// over GOMAXPROCS workers, each with its own matrix.
func (m *Im2Row) CallParallel(c anyvec.Creator, n int, f func(int, *anyvec.Matrix)) {
	jobs := make(chan int, n)
	for i := 0; i < n; i++ {
		jobs <- i
	}
	close(jobs)

	workers := runtime.GOMAXPROCS(0)
	if workers > n {
		workers = n
	}

	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			imageMat := m.MakeOut(c)
			for j := range jobs {
				f(j, imageMat)
			}
		}()
	}
	wg.Wait()
}

// Mapper returns the cached mapper for the creator,
// building it if needed.
func (m *Im2Row) Mapper(c anyvec.Creator) anyvec.Mapper {
	m.mapperLock.Lock()
	defer m.mapperLock.Unlock()
	if m.mapper != nil && m.mapper.Creator() == c {
		return m.mapper
	}

	mapping := make([]int, 0, m.NumX()*m.NumY()*m.WindowWidth*m.WindowHeight*m.InputDepth)
	for y := 0; y+m.WindowHeight <= m.InputHeight; y += m.StrideY {
		for x := 0; x+m.WindowWidth <= m.InputWidth; x += m.StrideX {
			for subY := 0; subY < m.WindowHeight; subY++ {
				subYIdx := (y + subY) * m.InputWidth * m.InputDepth
				for subX := 0; subX < m.WindowWidth; subX++ {
					subXIdx := subYIdx + (subX+x)*m.InputDepth
					for subZ := 0; subZ < m.InputDepth; subZ++ {
						mapping = append(mapping, subXIdx+subZ)
					}
				}
			}
		}
	}

	m.mapper = c.MakeMapper(m.InputSize(), mapping)
	return m.mapper
}
