// Package model provides the data structures shared by the pipeline package and its options.
// It defines the step descriptors and the hooks a pipeline option can implement.
package model
