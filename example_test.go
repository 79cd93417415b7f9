package amrviz_test

import (
	"context"
	"fmt"
	"log"
	"os"

	"github.com/aretw0/amrviz"
	"github.com/aretw0/amrviz/pkg/domain"
)

// ExampleNew solves the sphere problem twice with VCES refinement and
// reads the last file back as viewer geometry.
func ExampleNew() {
	dir, err := os.MkdirTemp("", "amrviz-example")
	if err != nil {
		log.Fatal(err)
	}
	defer os.RemoveAll(dir)

	engine, err := amrviz.New(dir)
	if err != nil {
		log.Fatal(err)
	}

	params := domain.DefaultSolveParams()
	params.InitTriHeight = 0.5
	params.MaxIterations = 2

	ctx := context.Background()
	res, err := engine.Solve(ctx, "example", params)
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(res.Message)
	fmt.Println(res.Files)

	geo, err := engine.Geometry(ctx, "example", res.Files[1], "")
	if err != nil {
		log.Fatal(err)
	}
	fmt.Println(geo.Scalar, geo.NumPoints() == res.Iterations[1].Vertices)
	// Output:
	// Solutions generated successfully
	// [solution_0.pvd solution_1.pvd]
	// solution true
}
