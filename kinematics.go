package dsimpedance

import (
	_ "embed"
	"encoding/json"
	"math"

	"github.com/golang/geo/r3"
	"github.com/pkg/errors"
	"go.viam.com/rdk/referenceframe"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/num/quat"
)

//go:embed iiwa14.json
var iiwaModelJSON []byte

// Pose is an end-effector pose: position in meters plus a unit orientation
// quaternion.
type Pose struct {
	Position    r3.Vector
	Orientation quat.Number
}

// KinematicModel answers forward-kinematics queries for the controller. The
// control loop re-queries it every tick; implementations must not cache
// results across calls.
//
// The Jacobian is 6xN with angular rows on top (rows 0-2) and linear rows
// below (rows 3-5), the same ordering used for twists and wrenches
// throughout this package.
type KinematicModel interface {
	DoF() int
	EndEffector(jointPositions []float64) (Pose, error)
	Jacobian(jointPositions []float64) (*mat.Dense, error)
}

// jacobianStep is the joint perturbation used for the central-difference
// Jacobian, in radians.
const jacobianStep = 1e-5

// frameModel adapts a referenceframe.Model to KinematicModel.
type frameModel struct {
	model referenceframe.Model
	n     int
}

// NewFrameModel wraps a parsed kinematic model.
func NewFrameModel(model referenceframe.Model) (KinematicModel, error) {
	n := len(model.DoF())
	if n == 0 {
		return nil, errors.New("kinematic model has no degrees of freedom")
	}
	return &frameModel{model: model, n: n}, nil
}

// NewEmbeddedIiwaModel parses the embedded 7-DoF model description.
func NewEmbeddedIiwaModel() (KinematicModel, error) {
	model, err := parseModelJSON(iiwaModelJSON, "iiwa14")
	if err != nil {
		return nil, err
	}
	return NewFrameModel(model)
}

func parseModelJSON(modelJSON []byte, name string) (referenceframe.Model, error) {
	if len(modelJSON) == 0 {
		return nil, errors.New("empty kinematic model description")
	}
	m := &referenceframe.ModelConfigJSON{
		OriginalFile: &referenceframe.ModelFile{
			Bytes:     modelJSON,
			Extension: "json",
		},
	}
	if err := json.Unmarshal(modelJSON, m); err != nil {
		return nil, errors.Wrap(err, "failed to unmarshal kinematic model json")
	}
	return m.ParseConfig(name)
}

func (f *frameModel) DoF() int { return f.n }

func (f *frameModel) EndEffector(jointPositions []float64) (Pose, error) {
	if len(jointPositions) != f.n {
		return Pose{}, errors.Errorf("expected %d joint positions, got %d", f.n, len(jointPositions))
	}
	pose, err := referenceframe.ComputeOOBPosition(f.model, referenceframe.FloatsToInputs(jointPositions))
	if err != nil {
		return Pose{}, err
	}
	// referenceframe works in millimeters; the control law in meters.
	return Pose{
		Position:    pose.Point().Mul(1e-3),
		Orientation: NormalizeQuat(pose.Orientation().Quaternion()),
	}, nil
}

// Jacobian computes the geometric Jacobian by central differences of the
// forward kinematics. The angular rows come from the axis-angle of the
// orientation increment between the two perturbed poses.
func (f *frameModel) Jacobian(jointPositions []float64) (*mat.Dense, error) {
	if len(jointPositions) != f.n {
		return nil, errors.Errorf("expected %d joint positions, got %d", f.n, len(jointPositions))
	}

	jac := mat.NewDense(6, f.n, nil)
	perturbed := make([]float64, f.n)
	for i := 0; i < f.n; i++ {
		copy(perturbed, jointPositions)

		perturbed[i] = jointPositions[i] + jacobianStep
		plus, err := f.EndEffector(perturbed)
		if err != nil {
			return nil, err
		}
		perturbed[i] = jointPositions[i] - jacobianStep
		minus, err := f.EndEffector(perturbed)
		if err != nil {
			return nil, err
		}

		dq := quat.Mul(plus.Orientation, quat.Conj(minus.Orientation))
		axis, angle := QuatToAxisAngle(dq)
		if angle > math.Pi {
			angle -= 2 * math.Pi
		}
		omega := axis.Mul(angle / (2 * jacobianStep))
		vel := plus.Position.Sub(minus.Position).Mul(1 / (2 * jacobianStep))

		jac.Set(0, i, omega.X)
		jac.Set(1, i, omega.Y)
		jac.Set(2, i, omega.Z)
		jac.Set(3, i, vel.X)
		jac.Set(4, i, vel.Y)
		jac.Set(5, i, vel.Z)
	}
	return jac, nil
}
