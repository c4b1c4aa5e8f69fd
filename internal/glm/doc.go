// Package glm fits generalized linear models by iteratively reweighted least
// squares (IRLS) on large row counts.
//
// Each IRLS step solves its weighted least-squares problem with a two-level
// QR reduction instead of the normal equations. Observations are split into
// contiguous row blocks. Every block is weighted, factored and projected on
// the executor's worker pool, and only its compact p×p triangular factor
// leaves the task. The stacked factors are then merged by one QR on the
// control goroutine, whose rank test moves collinear columns to the end and
// keeps the others in predictor order. The new coefficients come from two
// triangular solves against the merged factor.
//
// The entry points are Fit, which takes a Problem, a Family and Options, and
// FitParallel, which takes flat arguments and resolves the family by name.
package glm
