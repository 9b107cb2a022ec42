package behavior

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

type vec3 struct {
	X, Y, Z float64
	hidden  int
}

func (v *vec3) Scale(f float64) {
	v.X *= f
	v.Y *= f
	v.Z *= f
}

func (v *vec3) Sum() float64 {
	return v.X + v.Y + v.Z
}

func (v *vec3) Fail() error {
	return errors.New("boom")
}

type counter struct {
	N int
}

var counterDestructs int

func (c *counter) Destruct() { counterDestructs++ }

func TestBindFields(t *testing.T) {
	c, err := Bind(vec3{}, WithName("Vector3"))
	require.NoError(t, err)
	require.Equal(t, "Vector3", c.Name)
	require.False(t, c.Type.IsNil())

	require.Len(t, c.Properties, 3)
	p := c.Property("X")
	require.NotNil(t, p)
	require.NotNil(t, p.Getter)
	require.NotNil(t, p.Setter)

	v := &vec3{X: 1.5}
	got, err := p.Getter.Call([]any{v})
	require.NoError(t, err)
	require.Equal(t, 1.5, got)

	_, err = p.Setter.Call([]any{v, 4.0})
	require.NoError(t, err)
	require.Equal(t, 4.0, v.X)
}

func TestBindMemberMethods(t *testing.T) {
	c := MustBind(vec3{}, WithName("Vector3"))

	m := c.Method("Scale")
	require.NotNil(t, m)
	require.True(t, c.IsMemberMethod(m))
	require.Equal(t, 2, m.NumArguments())
	require.False(t, m.HasResult())

	v := &vec3{X: 1, Y: 2, Z: 3}
	_, err := m.Call([]any{v, 2.0})
	require.NoError(t, err)
	require.Equal(t, 2.0, v.X)
	require.Equal(t, 6.0, v.Z)

	sum := c.Method("Sum")
	require.NotNil(t, sum)
	require.True(t, sum.HasResult())
	got, err := sum.Call([]any{v})
	require.NoError(t, err)
	require.Equal(t, 12.0, got)
}

func TestBindMethodErrorPropagates(t *testing.T) {
	c := MustBind(vec3{})
	m := c.Method("Fail")
	require.NotNil(t, m)
	_, err := m.Call([]any{&vec3{}})
	require.EqualError(t, err, "boom")
}

func TestBindSynthesizedConstructor(t *testing.T) {
	c := MustBind(vec3{}, WithName("Vector3"))
	require.Len(t, c.Constructors, 1)

	ctor := c.Constructors[0]
	require.Equal(t, 4, ctor.NumArguments())

	v := c.Allocate().(*vec3)
	_, err := ctor.Call([]any{v, 1.0, 2.0, 3.0})
	require.NoError(t, err)
	require.Equal(t, vec3{X: 1, Y: 2, Z: 3}, *v)
}

func TestBindCustomConstructor(t *testing.T) {
	c := MustBind(vec3{}, WithName("Vector3"),
		WithConstructor(func(v *vec3, uniform float64) {
			v.X, v.Y, v.Z = uniform, uniform, uniform
		}))
	require.Len(t, c.Constructors, 2)

	v := c.Allocate().(*vec3)
	_, err := c.Constructors[0].Call([]any{v, 7.0})
	require.NoError(t, err)
	require.Equal(t, vec3{X: 7, Y: 7, Z: 7}, *v)
}

func TestBindStaticMethod(t *testing.T) {
	c := MustBind(vec3{}, WithName("Vector3"),
		WithStaticMethod("Sum3", func(a, b, c float64) float64 { return a + b + c }))

	m := c.Method("Sum3")
	require.NotNil(t, m)
	require.False(t, c.IsMemberMethod(m))
	got, err := m.Call([]any{1.0, 2.0, 3.0})
	require.NoError(t, err)
	require.Equal(t, 6.0, got)
}

func TestBindIgnores(t *testing.T) {
	c := MustBind(vec3{},
		WithIgnoredFields("Z"),
		WithIgnoredMethods("Fail"))
	require.Nil(t, c.Property("Z"))
	require.NotNil(t, c.Property("X"))
	require.Nil(t, c.Method("Fail"))
	require.NotNil(t, c.Method("Scale"))
}

func TestBindDestructor(t *testing.T) {
	c := MustBind(counter{})
	require.NotNil(t, c.Destruct)
	// Destruct is lifecycle plumbing, never a script method.
	require.Nil(t, c.Method("Destruct"))

	counterDestructs = 0
	c.Destruct(&counter{})
	require.Equal(t, 1, counterDestructs)
}

func TestBindClone(t *testing.T) {
	c := MustBind(vec3{})
	orig := &vec3{X: 1, Y: 2, Z: 3}
	cp := c.Clone(orig).(*vec3)
	require.NotSame(t, orig, cp)
	require.Equal(t, *orig, *cp)

	cp.X = 99
	require.Equal(t, 1.0, orig.X)
}

func TestBindRejectsNonStruct(t *testing.T) {
	_, err := Bind(42)
	require.Error(t, err)
	_, err = Bind(nil)
	require.Error(t, err)
}

func TestTypeIDs(t *testing.T) {
	require.Equal(t, TypeIDFor("a"), TypeIDFor("a"))
	require.NotEqual(t, TypeIDFor("a"), TypeIDFor("b"))

	a := MustBind(vec3{})
	b := MustBind(vec3{})
	require.Equal(t, a.Type, b.Type)
	require.NotEqual(t, a.Type, MustBind(counter{}).Type)
}

func TestAttributeScope(t *testing.T) {
	var attrs AttributeSet
	require.True(t, attrs.InScope(ScopeLauncher))
	require.True(t, attrs.InScope(ScopeAutomation))

	attrs.Scopes = ScopeAutomation
	require.False(t, attrs.InScope(ScopeLauncher))
	require.True(t, attrs.InScope(ScopeAutomation))
}
