// Package phi holds golden-ratio constants used for evenly spread colors.
package phi

// Phi is the golden ratio.
const Phi = 1.6180339887498948

// GoldenAngle is 360/Φ² in degrees. Stepping a hue by it keeps successive
// plate colors far apart.
const GoldenAngle = 360 / (Phi * Phi)
