// Package exec runs logical plans as pull-based pipelines of Arrow record
// batches.
//
// Each plan node is lowered to a Pipeline. Scans pull batches from their
// table provider. Chains of Filter and Projection nodes are fused into one
// per-batch transform, which runs on an ants worker pool when the executor
// is configured with a parallelism above one; results are still returned
// in input order. Aggregate and Sort are blocking: they drain their input
// before producing a single batch. A Sort with a fetch keeps only the best
// rows while reading. Limit stops pulling from its input once satisfied.
//
// # Basic Usage
//
//	x := exec.New(exec.Config{Pool: pool, Parallelism: 4})
//	batches, err := x.Collect(ctx, node)
//	if err != nil {
//	    return err
//	}
//	defer func() {
//	    for _, b := range batches {
//	        b.Release()
//	    }
//	}()
//
// Collect always returns at least one batch; a query that produces no
// rows yields a single empty batch carrying the output schema.
package exec
