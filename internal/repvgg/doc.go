// Package repvgg implements RepVGG blocks and networks together with the
// structural re-parameterization that turns them into plain convolution
// stacks for inference.
//
// A Block starts in Training mode with three parallel branches:
//
//	y = relu(se(bn3(conv3x3(x)) + bn1(conv1x1(x)) + bn_id(x)))
//
// Convert folds every batch normalization into its convolution, embeds the
// 1x1 kernel and the identity at the center tap of a 3x3 kernel and sums the
// three, leaving a single 3x3 convolution with bias:
//
//	y = relu(se(conv3x3'(x)))
//
// Both forms compute the same function up to floating point rounding. The
// transition is one way; converting a deployed block is a no-op.
//
// Example:
//
//	net, err := repvgg.NewNetwork(repvgg.A0(1000), cpu.New())
//	if err != nil {
//	    return err
//	}
//	// ... train, or load a checkpoint ...
//	deployed, err := repvgg.ConvertNetwork(net, repvgg.ConvertOptions{Copy: true})
package repvgg
