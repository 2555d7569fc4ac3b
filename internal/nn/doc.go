// Package nn implements the neural network modules the RepVGG runtime is
// assembled from.
//
// This package provides:
//   - Module interface: Forward plus parameter enumeration
//   - Parameter: named tensors owned by a module
//   - Conv2D: grouped, dilated convolution with optional bias
//   - BatchNorm2D: running-statistics batch normalization
//   - SqueezeExcite: channel attention gate
//   - Linear, ReLU, Sigmoid, GlobalAvgPool
//   - Initializers: TruncatedNormal, Zeros
//
// Modules evaluate with fixed parameters. Gradient computation and batch
// statistics belong to the training framework and are not part of this
// package.
package nn
