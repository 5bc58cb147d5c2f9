/*Package interval implements coverage-weighted interval flattening over
  read coordinates.  Unlike a plain interval union, overlapping inputs are
  not merged into bare ranges: every output sub-interval is annotated with
  the number of inputs covering it and the sum of their weights, so a
  per-base mean (weight/depth) is well-defined everywhere the coverage is
  nonzero.*/
package interval
