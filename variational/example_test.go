package variational_test

import (
	"fmt"

	"github.com/born-ml/bnn/backend/cpu"
	"github.com/born-ml/bnn/nn"
	"github.com/born-ml/bnn/tensor"
	"github.com/born-ml/bnn/variational"
)

func ExampleNew() {
	backend := cpu.New()
	base := nn.NewLinear(4, 3, true, backend)

	cfg := variational.DefaultConfig()
	layer, err := variational.New(base, cfg, variational.WithSeed(1))
	if err != nil {
		panic(err)
	}

	y := layer.Forward(tensor.Ones(tensor.Shape{2, 4}))
	fmt.Println(y.Shape())
	fmt.Println(len(layer.Parameters()))
	// Output:
	// [2 3]
	// 4
}
