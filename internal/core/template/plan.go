package template

import (
	"os"
	"path"
	"sort"
	"strconv"

	"github.com/artpar/honeymesh/internal/core/domain"
)

// =============================================================================
// Write Plan
// =============================================================================

// FileWrite is one entry in an expansion plan: a directory to create or a
// file to write, relative to the deployment root.
type FileWrite struct {
	RelPath string
	Dir     bool
	Mode    os.FileMode
	Content []byte
}

const (
	dirMode  = os.FileMode(0o755)
	fileMode = os.FileMode(0o644)
)

// NodeMode resolves a node's file mode, falling back to the per-kind default
// when the template sets none. The mode string is validated octal by
// ValidateTemplate before a plan is ever built.
func NodeMode(node domain.FSNode) os.FileMode {
	if node.Mode == "" {
		if node.Kind == domain.NodeDirectory {
			return dirMode
		}
		return fileMode
	}
	parsed, err := strconv.ParseUint(node.Mode, 8, 32)
	if err != nil {
		if node.Kind == domain.NodeDirectory {
			return dirMode
		}
		return fileMode
	}
	return os.FileMode(parsed)
}

// BuildWritePlan computes every directory and file an expansion must
// materialize for a deployment, in a deterministic order: directories first
// (parents before children), then files sorted by path. tpl is nil for
// default-mode deployments, which get the stock artifacts only.
//
// The plan is all-or-nothing by construction: the engine stages it in a
// scratch directory and promotes it atomically, so a failed entry never
// leaves a partial tree behind.
func BuildWritePlan(d *domain.Deployment, tpl *domain.Template) ([]FileWrite, error) {
	var settings domain.TemplateSettings
	accounts := DefaultAccounts()
	if tpl != nil {
		settings = tpl.Settings
		accounts = tpl.Accounts
	}

	dirs := map[string]os.FileMode{
		"config":       dirMode,
		"honeyfs":      dirMode,
		"honeyfs/etc":  dirMode,
		"elk":          dirMode,
		"elk/logstash": dirMode,
		"elk/filebeat": dirMode,
	}
	files := map[string]FileWrite{}

	addFile := func(rel string, content string, mode os.FileMode) {
		files[rel] = FileWrite{RelPath: rel, Mode: mode, Content: []byte(content)}
	}

	addFile("config/cowrie.cfg", RenderCowrieConfig(d, settings), fileMode)
	addFile("config/userdb.txt", RenderUserDB(accounts), 0o600)
	addFile("honeyfs/etc/passwd", RenderPasswd(accounts), fileMode)

	hostname := settings.Hostname
	if hostname == "" {
		hostname = d.Hostname
	}
	addFile("honeyfs/etc/hostname", RenderHostnameFile(hostname), fileMode)

	addFile("elk/logstash/cowrie.conf", RenderLogstashPipeline(d.Name), fileMode)
	addFile("elk/filebeat/filebeat.yml", RenderFilebeatConfig(), fileMode)

	if tpl != nil {
		if len(tpl.Commands) > 0 {
			rendered, err := RenderCommandOutputs(tpl.Commands)
			if err != nil {
				return nil, err
			}
			addFile("config/cmdoutput.json", rendered, fileMode)
		}

		for _, node := range tpl.Filesystem {
			rel := path.Join("honeyfs", path.Clean(node.Path)[1:])

			if node.Kind == domain.NodeDirectory {
				dirs[rel] = NodeMode(node)
				continue
			}

			// Derived artifacts win over template nodes at the same path;
			// the passwd file must agree with the account list.
			if _, taken := files[rel]; taken {
				continue
			}
			files[rel] = FileWrite{RelPath: rel, Mode: NodeMode(node), Content: []byte(node.Content)}
			dirs[path.Dir(rel)] = dirMode
		}
	}

	// Ensure every file's parent chain exists as a directory entry.
	for rel := range files {
		for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, ok := dirs[dir]; !ok {
				dirs[dir] = dirMode
			}
		}
	}
	for rel := range dirs {
		for dir := path.Dir(rel); dir != "." && dir != "/"; dir = path.Dir(dir) {
			if _, ok := dirs[dir]; !ok {
				dirs[dir] = dirMode
			}
		}
	}

	// Lexicographic order puts parents before children.
	plan := make([]FileWrite, 0, len(dirs)+len(files))
	for _, rel := range sortedKeys(dirs) {
		plan = append(plan, FileWrite{RelPath: rel, Dir: true, Mode: dirs[rel]})
	}
	for _, rel := range sortedFileKeys(files) {
		plan = append(plan, files[rel])
	}
	return plan, nil
}

func sortedKeys(m map[string]os.FileMode) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func sortedFileKeys(m map[string]FileWrite) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
