package digcap

import (
	"crypto/rand"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCreateExtractRoundTripEmpty(t *testing.T) {
	dir := t.TempDir()

	set, err := CreateDataCapsule(nil, dir, false, "")
	require.NoError(t, err)
	require.Len(t, set.Capsules, 1)
	require.EqualValues(t, 262144, set.Capsules[0].Size)
	require.Equal(t, "e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855", set.ID)

	info, err := os.Stat(filepath.Join(dir, capsuleFileName(t, set, 0)))
	require.NoError(t, err)
	require.EqualValues(t, 262144, info.Size())

	got, err := ExtractDataCapsule(dir, "")
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestCreateExtractRoundTripHelloWorld(t *testing.T) {
	dir := t.TempDir()

	set, err := CreateDataCapsule([]byte("hello world"), dir, false, "")
	require.NoError(t, err)
	require.Len(t, set.Capsules, 1)
	require.EqualValues(t, 262144, set.Capsules[0].Size)

	got, err := ExtractDataCapsule(dir, "")
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), got)
}

func TestCreateExtractWithPassphraseDiffersAndRequiresIt(t *testing.T) {
	plainDir := t.TempDir()
	_, err := CreateDataCapsule([]byte("hello world"), plainDir, false, "")
	require.NoError(t, err)

	encDir := t.TempDir()
	encSet, err := CreateDataCapsule([]byte("hello world"), encDir, false, "pw")
	require.NoError(t, err)
	require.NotEmpty(t, encSet.Metadata.EncryptionInfo)

	plainCapsule, err := os.ReadFile(filepath.Join(plainDir, capsuleFileName(t, encSet, 0)))
	require.NoError(t, err)
	encCapsule, err := os.ReadFile(filepath.Join(encDir, capsuleFileName(t, encSet, 0)))
	require.NoError(t, err)
	require.NotEqual(t, plainCapsule, encCapsule)

	got, err := ExtractDataCapsule(encDir, "pw")
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), got)

	_, err = ExtractDataCapsule(encDir, "wrong passphrase")
	require.Error(t, err)
}

func TestCreateExtractTwoChunkPlan(t *testing.T) {
	dir := t.TempDir()

	data := make([]byte, 262145)
	_, err := rand.Read(data)
	require.NoError(t, err)

	set, err := CreateDataCapsule(data, dir, false, "k")
	require.NoError(t, err)
	require.Len(t, set.Capsules, 2)
	require.EqualValues(t, []uint32{262144, 262144}, set.Metadata.CapsuleSizes)

	got, err := ExtractDataCapsule(dir, "k")
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestCreateIsDeterministic(t *testing.T) {
	dirA := t.TempDir()
	dirB := t.TempDir()
	data := []byte("deterministic output across two independent runs")

	setA, err := CreateDataCapsule(data, dirA, false, "pw")
	require.NoError(t, err)
	setB, err := CreateDataCapsule(data, dirB, false, "pw")
	require.NoError(t, err)

	require.Equal(t, setA, setB)

	rawA, err := os.ReadFile(filepath.Join(dirA, setA.MetadataFileName()))
	require.NoError(t, err)
	rawB, err := os.ReadFile(filepath.Join(dirB, setB.MetadataFileName()))
	require.NoError(t, err)
	require.Equal(t, rawA, rawB)

	capA, err := os.ReadFile(filepath.Join(dirA, capsuleFileName(t, setA, 0)))
	require.NoError(t, err)
	capB, err := os.ReadFile(filepath.Join(dirB, capsuleFileName(t, setB, 0)))
	require.NoError(t, err)
	require.Equal(t, capA, capB)
}

func TestCreateDataCapsuleFromFile(t *testing.T) {
	srcDir := t.TempDir()
	outDir := t.TempDir()

	data := make([]byte, 1048576+1)
	_, err := rand.Read(data)
	require.NoError(t, err)

	srcPath := filepath.Join(srcDir, "input.bin")
	require.NoError(t, os.WriteFile(srcPath, data, 0o644))

	set, err := CreateDataCapsuleFromFile(srcPath, outDir, false, "")
	require.NoError(t, err)
	require.EqualValues(t, []uint32{1048576, 262144}, set.Metadata.CapsuleSizes)

	got, err := ExtractDataCapsule(outDir, "")
	require.NoError(t, err)
	require.Equal(t, data, got)
}

func TestExtractToFileAndReconstructFromCapsules(t *testing.T) {
	dir := t.TempDir()
	set, err := CreateDataCapsule([]byte("round trip via files"), dir, false, "pw")
	require.NoError(t, err)

	outPath := filepath.Join(t.TempDir(), "out.bin")
	require.NoError(t, ExtractDataCapsuleToFile(dir, outPath, "pw"))

	got, err := os.ReadFile(outPath)
	require.NoError(t, err)
	require.Equal(t, []byte("round trip via files"), got)

	reconPath := filepath.Join(t.TempDir(), "recon.bin")
	require.NoError(t, ReconstructFileFromCapsules(set, dir, reconPath, "pw"))
	got2, err := os.ReadFile(reconPath)
	require.NoError(t, err)
	require.Equal(t, []byte("round trip via files"), got2)
}

func TestDiagnosticsAndConsensusHelpers(t *testing.T) {
	require.Equal(t, "DIG_CAPSULE_V1", GetConsensusVersion())
	require.Equal(t, []uint64{262144, 1048576, 10485760, 104857600, 1048576000}, GetCapsuleSizes())

	dir := t.TempDir()
	set, err := CreateDataCapsule([]byte("diagnostics"), dir, false, "")
	require.NoError(t, err)

	path := filepath.Join(dir, capsuleFileName(t, set, 0))
	require.True(t, IsValidCapsuleFile(path))

	info := GetCapsuleFileInfo(path)
	require.NotNil(t, info)
	require.False(t, info.IsEncrypted)

	require.NoError(t, ValidateConsensusParameters(set))

	loaded, err := LoadCapsuleSet(dir)
	require.NoError(t, err)
	require.Equal(t, set, loaded)
}

// capsuleFileName builds the same name as capsetio.CapsuleFileName for
// capsule index of set.
func capsuleFileName(t *testing.T, set CapsuleSet, index uint32) string {
	t.Helper()
	return fmt.Sprintf("%s_%03d.capsule", set.FileNamePrefix(), index)
}
