package ellipsoid

import "math"

// Coefficients are the terms of the implicit conic A·y² + B·y + C = 0 that
// an ellipse with semi-axes a, b rotated by theta satisfies at a given x.
type Coefficients struct {
	A float64 `json:"a" yaml:"a"`
	B float64 `json:"b" yaml:"b"`
	C float64 `json:"c" yaml:"c"`
}

// NewCoefficients evaluates the conic at x:
//
//	A = sin²θ/a² + cos²θ/b²
//	B = (1/a² − 1/b²)·x·sin2θ
//	C = x²·cos²θ/a² + x²·sin²θ/b² − 1
func NewCoefficients(a, b, theta, x float64) Coefficients {
	sin, cos := math.Sincos(theta)
	a2, b2 := a*a, b*b
	x2 := x * x

	return Coefficients{
		A: sin*sin/a2 + cos*cos/b2,
		B: (1/a2 - 1/b2) * x * math.Sin(2*theta),
		C: x2*cos*cos/a2 + x2*sin*sin/b2 - 1,
	}
}

// Discriminant returns B² − 4AC.
func (c Coefficients) Discriminant() float64 {
	return c.B*c.B - 4*c.A*c.C
}

// Evaluate returns A·y² + B·y + C. It is negative inside the ellipse, zero on
// the boundary and positive outside.
func (c Coefficients) Evaluate(y float64) float64 {
	return c.A*y*y + c.B*y + c.C
}

// Roots solves the conic for y. ok is false when the discriminant is negative,
// that is when x lies outside the horizontal extent of the ellipse.
func Roots(c Coefficients) (upper, lower float64, ok bool) {
	disc := c.Discriminant()
	if disc < 0 || c.A == 0 {
		return 0, 0, false
	}

	sqrtDisc := math.Sqrt(disc)

	return (-c.B + sqrtDisc) / (2 * c.A), (-c.B - sqrtDisc) / (2 * c.A), true
}
