package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"websites-content-system/pkg/models"
	"websites-content-system/pkg/tree"
	"websites-content-system/pkg/utils"
)

func run(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := newRootCmd(&out)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetErr(&bytes.Buffer{})
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), err
}

func sampleTree() models.ProjectTree {
	ada := &models.User{Name: "Ada", Email: "ada@example.com"}
	return models.ProjectTree{
		Name: "example.com",
		Templates: &models.Page{
			Name: "/", URL: "/",
			Children: []*models.Page{
				{
					Name: "/about", URL: "/about",
					Children: []*models.Page{
						{Name: "/about/team", URL: "/about/team", Owner: ada},
					},
				},
				{Name: "/pricing", URL: "/pricing", Products: []models.Product{{Name: "Kubernetes"}}},
			},
		},
	}
}

func writeTree(t *testing.T, v any) string {
	t.Helper()
	data, err := json.Marshal(v)
	require.NoError(t, err)
	path := filepath.Join(t.TempDir(), "tree.json")
	require.NoError(t, os.WriteFile(path, data, 0o644))
	return path
}

func TestFilterCommand(t *testing.T) {
	path := writeTree(t, sampleTree())

	out, err := run(t, "", "filter", path, "--owner", "ada@example.com")
	require.NoError(t, err)
	var got models.ProjectTree
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"/", "/about", "/about/team"}, tree.Names(got.Templates))

	out, err = run(t, "", "filter", path, "--owner", "ada@example.com", "--policy", "promote")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"/", "/about/team"}, tree.Names(got.Templates))

	out, err = run(t, "", "filter", path, "--product", "kubernetes")
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, []string{"/", "/pricing"}, tree.Names(got.Templates))
}

func TestFilterCommand_StdinList(t *testing.T) {
	data, err := json.Marshal([]models.ProjectTree{sampleTree()})
	require.NoError(t, err)

	out, err := run(t, string(data), "filter", "-q", "PRICING")
	require.NoError(t, err)
	var got []models.ProjectTree
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	require.Len(t, got, 1)
	assert.Equal(t, []string{"/", "/pricing"}, tree.Names(got[0].Templates))
}

func TestFilterCommand_Errors(t *testing.T) {
	path := writeTree(t, sampleTree())
	_, err := run(t, "", "filter", path, "--policy", "sideways")
	assert.Error(t, err)

	_, err = run(t, "{}", "filter")
	assert.ErrorContains(t, err, "no templates root")
}

func TestScanCommand(t *testing.T) {
	repo := filepath.Join(t.TempDir(), "example.com")
	for rel, content := range map[string]string{
		"templates/index.html":         "<title>Home</title>",
		"templates/docs/index.html":    "<title>Docs</title>",
		"templates/docs/install.md":    "# Install",
		"templates/_partials/nav.html": "nav",
	} {
		full := filepath.Join(repo, rel)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}

	out, err := run(t, "", "scan", repo)
	require.NoError(t, err)
	var got models.ProjectTree
	require.NoError(t, json.Unmarshal([]byte(out), &got))
	assert.Equal(t, "example.com", got.Name)
	assert.Equal(t, []string{"/", "/docs", "/docs/install"}, tree.Names(got.Templates))
	assert.Equal(t, "Install", tree.FindPage(got.Templates, "/docs/install").Title)
}

func TestTokenCommand(t *testing.T) {
	out, err := run(t, "", "token", "--email", "ada@example.com", "--name", "Ada", "--secret", "s3cret")
	require.NoError(t, err)

	claims, err := utils.NewJWTService("s3cret").ValidateToken(strings.TrimSpace(out))
	require.NoError(t, err)
	assert.Equal(t, "ada@example.com", claims.Email)
	assert.Equal(t, "Ada", claims.Name)

	_, err = run(t, "", "token")
	assert.Error(t, err)
}
