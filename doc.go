/*
Package amrviz solves obstacle problems with adaptive mesh refinement and
serves the results to 3D viewers.

A solve request names a problem (Sphere or Spiral), an initial triangle
height, a number of iterations and a refinement method (VCES with a bracket,
or UDO with a neighborhood depth). Each iteration solves the variational
inequality on the current mesh, marks the cells near the free boundary,
writes the solution as a VTK file pair (solution_i.pvd referencing
solution_i/solution_i_0.vtu) and refines the marked cells.

# Architecture

The core is hexagonal. pkg/domain holds the shared types, pkg/ports the
interfaces, and the adapters plug in storage, transport and solvers:

  - pkg/pipeline: the native solve-and-refine loop (pkg/mesh, pkg/obstacle, pkg/amr, pkg/vtk).
  - pkg/adapters/process: an external solver executable behind the same port.
  - pkg/adapters/http: the REST API and browser dashboard.
  - pkg/adapters/mcp: the same operations as MCP tools.
  - pkg/adapters/{memory,file,redis}: session stores.

# Usage

	engine, err := amrviz.New("./data")
	if err != nil {
		log.Fatal(err)
	}
	params := domain.DefaultSolveParams()
	params.MaxIterations = 3
	res, err := engine.Solve(ctx, "demo", params)

Every file of res.Files can then be read back with engine.Geometry.
*/
package amrviz
