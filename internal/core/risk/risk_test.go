package risk

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"neoprobe/internal/core/model"
)

func TestScore(t *testing.T) {
	authOK := &model.ProbeResult{Command: "nxc smb x -u a -p b", Category: model.CategoryAuthentication, Success: true, Output: "[+] a:b"}
	authFail := &model.ProbeResult{Command: "nxc smb x -u a -p b", Category: model.CategoryAuthentication, ReturnCode: 1, Output: "[-] a:b"}
	enumAuthWord := &model.ProbeResult{Command: "nxc smb x --auth-method", Category: model.CategoryEnumeration, Success: true, Output: "ok"}
	adminOut := &model.ProbeResult{Command: "smbmap -H x", Category: model.CategoryEnumeration, Success: true, Output: "ADMIN$ READ"}
	timedOutAdmin := &model.ProbeResult{Command: "x", Output: "admin", ReturnCode: model.ReturnCodeTimeout}

	tests := []struct {
		name     string
		base     float64
		results  []*model.ProbeResult
		expected float64
	}{
		{"base only", 5.0, nil, 5.0},
		{"auth success", 5.0, []*model.ProbeResult{authOK}, 6.5},
		{"auth failed", 5.0, []*model.ProbeResult{authFail}, 5.0},
		{"auth substring in enumeration command ignored", 5.0, []*model.ProbeResult{enumAuthWord}, 5.0},
		{"admin keyword", 4.0, []*model.ProbeResult{adminOut}, 5.0},
		{"timed out output ignored", 4.0, []*model.ProbeResult{timedOutAdmin}, 4.0},
		{"both bonuses", 6.0, []*model.ProbeResult{authOK, adminOut}, 8.5},
		{"clamped at ten", 9.0, []*model.ProbeResult{authOK, adminOut}, 10.0},
		{"docker api clamped", 9.5, []*model.ProbeResult{adminOut}, 10.0},
		{"negative base clamped", -1.0, nil, 0.0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.expected, Score(tt.base, tt.results), 1e-9)
		})
	}
}

func TestScoreMonotonic(t *testing.T) {
	all := []*model.ProbeResult{
		{Category: model.CategoryEnumeration, Success: true, Output: "banner"},
		{Category: model.CategoryAuthentication, Success: true, Output: "[+] ok"},
		{Category: model.CategoryEscalation, Success: true, Output: "Administrators group"},
	}

	prev := Score(5.0, nil)
	for i := 1; i <= len(all); i++ {
		cur := Score(5.0, all[:i])
		assert.GreaterOrEqual(t, cur, prev)
		assert.LessOrEqual(t, cur, MaxScore)
		prev = cur
	}
}

func pathTypes(paths []model.AttackPath) []model.AttackPathType {
	var out []model.AttackPathType
	for _, p := range paths {
		out = append(out, p.Type)
	}
	return out
}

func TestAttackPaths(t *testing.T) {
	tests := []struct {
		name     string
		ports    []int
		expected []model.AttackPathType
	}{
		{"empty", nil, nil},
		{"single ssh", []int{22}, nil},
		{"domain controller", []int{88, 389, 445}, []model.AttackPathType{model.PathDomainController}},
		{"ssh and smb", []int{22, 445}, []model.AttackPathType{model.PathCredentialReuse, model.PathLateralMovement}},
		{"rdp only", []int{3389}, []model.AttackPathType{model.PathPrivilegeEscalation}},
		{"redis", []int{6379}, []model.AttackPathType{model.PathDataExfiltration}},
		{"docker", []int{2375}, []model.AttackPathType{model.PathContainerEscape}},
		{"web only", []int{80, 443, 8080}, nil},
		{
			"full windows host",
			[]int{5985, 445, 389, 88, 3389, 1433, 3306, 22},
			[]model.AttackPathType{
				model.PathCredentialReuse,
				model.PathDomainController,
				model.PathLateralMovement,
				model.PathPrivilegeEscalation,
				model.PathDataExfiltration,
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, pathTypes(AttackPaths(tt.ports)))
		})
	}
}

func TestAttackPathDetails(t *testing.T) {
	paths := AttackPaths([]int{5985, 21, 3389, 27017, 3306})
	require.Len(t, paths, 3)

	assert.Equal(t, model.PathCredentialReuse, paths[0].Type)
	assert.Equal(t, []int{21, 3389, 5985}, paths[0].Ports)
	assert.Equal(t, model.SeverityHigh, paths[0].Severity)

	assert.Equal(t, model.PathPrivilegeEscalation, paths[1].Type)
	assert.Equal(t, []int{3389, 5985}, paths[1].Ports)

	assert.Equal(t, model.PathDataExfiltration, paths[2].Type)
	assert.Equal(t, []int{3306, 27017}, paths[2].Ports)
	assert.Equal(t, model.SeverityCritical, paths[2].Severity)
	assert.Contains(t, paths[2].Description, "3306,27017")
}

func TestOverallThreatLevel(t *testing.T) {
	tests := []struct {
		name       string
		scores     map[int]float64
		wantLevel  model.ThreatLevel
		wantStatus model.ThreatStatus
	}{
		{"empty", nil, model.ThreatLow, model.StatusAcceptable},
		{"all low", map[int]float64{80: 4.0, 443: 3.0}, model.ThreatLow, model.StatusAcceptable},
		{"one critical", map[int]float64{445: 9.0, 80: 4.0}, model.ThreatCritical, model.StatusCompromised},
		{"max at eight", map[int]float64{3389: 8.0}, model.ThreatHigh, model.StatusElevated},
		{"two at seven", map[int]float64{21: 7.0, 135: 7.0}, model.ThreatHigh, model.StatusElevated},
		{"single seven", map[int]float64{21: 7.0, 80: 4.0}, model.ThreatElevated, model.StatusConcerning},
		{"just below seven", map[int]float64{389: 6.9}, model.ThreatLow, model.StatusAcceptable},
		{"timed out port counts as zero", map[int]float64{445: 0.0}, model.ThreatLow, model.StatusAcceptable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level, status := OverallThreatLevel(tt.scores)
			assert.Equal(t, tt.wantLevel, level)
			assert.Equal(t, tt.wantStatus, status)
		})
	}
}
