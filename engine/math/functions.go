package math

import (
	"encoding/binary"
	m "math"
)

const (
	/** @brief An approximate representation of PI. */
	K_PI float32 = 3.14159265358979323846
	/** @brief A multiplier used to convert degrees to radians. */
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	/** @brief Smallest positive number where 1.0 + FLOAT_EPSILON != 0 */
	K_FLOAT_EPSILON float32 = 1.192092896e-07
)

func ksin(x float32) float32 {
	return float32(m.Sin(float64(x)))
}

func kcos(x float32) float32 {
	return float32(m.Cos(float64(x)))
}

func ktan(x float32) float32 {
	return float32(m.Tan(float64(x)))
}

func ksqrt(x float32) float32 {
	return float32(m.Sqrt(float64(x)))
}

func kabs(x float32) float32 {
	return float32(m.Abs(float64(x)))
}

func NewVec3(x, y, z float32) Vec3 {
	return Vec3{X: x, Y: y, Z: z}
}

func (v Vec3) Sub(other Vec3) Vec3 {
	return Vec3{v.X - other.X, v.Y - other.Y, v.Z - other.Z}
}

func (v Vec3) Dot(other Vec3) float32 {
	return v.X*other.X + v.Y*other.Y + v.Z*other.Z
}

func (v Vec3) Cross(other Vec3) Vec3 {
	return Vec3{
		X: v.Y*other.Z - v.Z*other.Y,
		Y: v.Z*other.X - v.X*other.Z,
		Z: v.X*other.Y - v.Y*other.X,
	}
}

func (v Vec3) Length() float32 {
	return ksqrt(v.Dot(v))
}

// Normalized returns a unit-length copy. The zero vector is returned unchanged.
func (v Vec3) Normalized() Vec3 {
	l := v.Length()
	if l < K_FLOAT_EPSILON {
		return v
	}
	return Vec3{v.X / l, v.Y / l, v.Z / l}
}

func (v Vec4) Compare(other Vec4, tolerance float32) bool {
	return kabs(v.X-other.X) <= tolerance &&
		kabs(v.Y-other.Y) <= tolerance &&
		kabs(v.Z-other.Z) <= tolerance &&
		kabs(v.W-other.W) <= tolerance
}

/**
 * @brief Creates and returns an identity matrix.
 */
func NewMat4Identity() Mat4 {
	out_matrix := Mat4{}
	out_matrix.Data[0] = 1.0
	out_matrix.Data[5] = 1.0
	out_matrix.Data[10] = 1.0
	out_matrix.Data[15] = 1.0
	return out_matrix
}

/**
 * @brief Returns the result of multiplying mt by other (mt applied first).
 */
func (mt Mat4) Mul(other Mat4) Mat4 {
	out_matrix := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			sum := float32(0)
			for i := 0; i < 4; i++ {
				sum += mt.Data[row*4+i] * other.Data[i*4+col]
			}
			out_matrix.Data[row*4+col] = sum
		}
	}
	return out_matrix
}

/**
 * @brief Left-handed perspective projection with depth in [0, 1].
 *
 * @param fov_radians The vertical field of view in radians.
 * @param aspect_ratio Width over height.
 */
func NewMat4PerspectiveLH(fov_radians, aspect_ratio, near_clip, far_clip float32) Mat4 {
	yscale := 1.0 / ktan(fov_radians*0.5)
	out_matrix := Mat4{}
	out_matrix.Data[0] = yscale / aspect_ratio
	out_matrix.Data[5] = yscale
	out_matrix.Data[10] = far_clip / (far_clip - near_clip)
	out_matrix.Data[11] = 1.0
	out_matrix.Data[14] = -near_clip * far_clip / (far_clip - near_clip)
	return out_matrix
}

/**
 * @brief Left-handed look-at view matrix.
 */
func NewMat4LookAtLH(eye, target, up Vec3) Mat4 {
	z_axis := target.Sub(eye).Normalized()
	x_axis := up.Cross(z_axis).Normalized()
	y_axis := z_axis.Cross(x_axis)

	out_matrix := NewMat4Identity()
	out_matrix.Data[0] = x_axis.X
	out_matrix.Data[1] = y_axis.X
	out_matrix.Data[2] = z_axis.X
	out_matrix.Data[4] = x_axis.Y
	out_matrix.Data[5] = y_axis.Y
	out_matrix.Data[6] = z_axis.Y
	out_matrix.Data[8] = x_axis.Z
	out_matrix.Data[9] = y_axis.Z
	out_matrix.Data[10] = z_axis.Z
	out_matrix.Data[12] = -x_axis.Dot(eye)
	out_matrix.Data[13] = -y_axis.Dot(eye)
	out_matrix.Data[14] = -z_axis.Dot(eye)
	return out_matrix
}

func NewMat4Translation(position Vec3) Mat4 {
	out_matrix := NewMat4Identity()
	out_matrix.Data[12] = position.X
	out_matrix.Data[13] = position.Y
	out_matrix.Data[14] = position.Z
	return out_matrix
}

func NewMat4Scale(scale Vec3) Mat4 {
	out_matrix := NewMat4Identity()
	out_matrix.Data[0] = scale.X
	out_matrix.Data[5] = scale.Y
	out_matrix.Data[10] = scale.Z
	return out_matrix
}

/**
 * @brief Creates a rotation matrix around the z axis.
 */
func NewMat4EulerZ(angle_radians float32) Mat4 {
	out_matrix := NewMat4Identity()
	c := kcos(angle_radians)
	s := ksin(angle_radians)
	out_matrix.Data[0] = c
	out_matrix.Data[1] = s
	out_matrix.Data[4] = -s
	out_matrix.Data[5] = c
	return out_matrix
}

// TransformPoint multiplies the row vector (p, 1) by the matrix.
func (mt Mat4) TransformPoint(p Vec3) Vec3 {
	d := &mt.Data
	return Vec3{
		X: p.X*d[0] + p.Y*d[4] + p.Z*d[8] + d[12],
		Y: p.X*d[1] + p.Y*d[5] + p.Z*d[9] + d[13],
		Z: p.X*d[2] + p.Y*d[6] + p.Z*d[10] + d[14],
	}
}

// TransformDirection ignores the translation row.
func (mt Mat4) TransformDirection(v Vec3) Vec3 {
	d := &mt.Data
	return Vec3{
		X: v.X*d[0] + v.Y*d[4] + v.Z*d[8],
		Y: v.X*d[1] + v.Y*d[5] + v.Z*d[9],
		Z: v.X*d[2] + v.Y*d[6] + v.Z*d[10],
	}
}

func (mt Mat4) Transposed() Mat4 {
	out_matrix := Mat4{}
	for row := 0; row < 4; row++ {
		for col := 0; col < 4; col++ {
			out_matrix.Data[col*4+row] = mt.Data[row*4+col]
		}
	}
	return out_matrix
}

// PutBytes writes the matrix as 16 little-endian float32 values into dst,
// which must hold at least 64 bytes.
func (mt Mat4) PutBytes(dst []byte) {
	for i, f := range mt.Data {
		binary.LittleEndian.PutUint32(dst[i*4:], m.Float32bits(f))
	}
}

func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}
