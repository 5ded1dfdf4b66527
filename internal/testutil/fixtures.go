package testutil

import (
	"fmt"

	"github.com/jamiewannenburg/uacalcsrc-sub002/internal/op"
)

// AddMod returns the binary addition table modulo n.
func AddMod(n int) op.Operation {
	size := int64(n)
	table := make([]int64, n*n)
	for y := 0; y < n; y++ {
		for x := 0; x < n; x++ {
			table[x+y*n] = int64((x + y) % n)
		}
	}
	t, err := op.NewTable("+", 2, size, table)
	if err != nil {
		panic(fmt.Sprintf("testutil: AddMod(%d): %v", n, err))
	}
	return t
}

// SuccMod returns the unary successor table modulo n.
func SuccMod(n int) op.Operation {
	size := int64(n)
	table := make([]int64, n)
	for x := 0; x < n; x++ {
		table[x] = int64((x + 1) % n)
	}
	t, err := op.NewTable("s", 1, size, table)
	if err != nil {
		panic(fmt.Sprintf("testutil: SuccMod(%d): %v", n, err))
	}
	return t
}

// Constant returns a nullary operation yielding v.
func Constant(symbol string, size, v int64) op.Operation {
	t, err := op.NewTable(symbol, 0, size, []int64{v})
	if err != nil {
		panic(fmt.Sprintf("testutil: Constant(%s): %v", symbol, err))
	}
	return t
}
