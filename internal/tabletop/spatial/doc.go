// Package spatial provides the k-d tree neighbourhood index shared by the
// outlier filter, the Euclidean clusterer and local normal estimation.
package spatial
