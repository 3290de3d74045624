/*
go-pspnet runs inference with pretrained PSPNet semantic segmentation
models (Pyramid Scene Parsing Network, Zhao et al. 2017) exported to
ONNX format.  It wraps the network behind a Predictor interface driven
by ONNX Runtime and provides sliding window tiling, multi scale
evaluation, and horizontal flip augmentation for predicting images of
arbitrary size with a fixed size network input.

Supported pretrained variants are the ResNet50 backbone trained on
ADE20K and the ResNet101 backbone trained on Cityscapes and Pascal
VOC2012.

See example code and usage in the example subdirectory.
*/
package pspnet
