// Package site gathers information about the WordPress install.
package site

import (
	"context"
	"strings"

	"github.com/tidwall/gjson"

	"github.com/eugenetaranov/wpbolt/internal/command"
	"github.com/eugenetaranov/wpbolt/internal/validate"
	"github.com/eugenetaranov/wpbolt/internal/wpcli"
)

// MaxListLimit caps how many posts one listing returns.
const MaxListLimit = 500

// Runner executes a descriptor on the site. *wpcli.Executor satisfies it.
type Runner interface {
	Run(ctx context.Context, d *command.Descriptor, format wpcli.Format) (*wpcli.Output, error)
}

// Inspector reads site state through a Runner.
type Inspector struct {
	run Runner
}

// New returns an Inspector backed by run.
func New(run Runner) *Inspector {
	return &Inspector{run: run}
}

// Info is the basic identity of the site.
type Info struct {
	Version string `json:"version"`
	URL     string `json:"url"`
	Title   string `json:"title"`

	// Facts holds optional extras gathered on a best-effort basis.
	Facts map[string]string `json:"facts,omitempty"`
}

// Plugin is one installed plugin.
type Plugin struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Update  string `json:"update"`
	Version string `json:"version"`
}

// Theme is one installed theme.
type Theme struct {
	Name    string `json:"name"`
	Status  string `json:"status"`
	Update  string `json:"update"`
	Version string `json:"version"`
}

// Post is a post summary.
type Post struct {
	ID     int    `json:"id"`
	Title  string `json:"title"`
	Status string `json:"status"`
	Type   string `json:"type"`
	Date   string `json:"date"`
}

// CoreUpdate is an available core release.
type CoreUpdate struct {
	Version    string `json:"version"`
	UpdateType string `json:"update_type"`
	PackageURL string `json:"package_url"`
}

// Updates lists everything with a pending update.
type Updates struct {
	Core    []CoreUpdate `json:"core"`
	Plugins []Plugin     `json:"plugins"`
	Themes  []Theme      `json:"themes"`
}

// PluginStatuses are the accepted filters for Plugins.
var PluginStatuses = []string{"active", "inactive", "must-use", "dropin", "active-network"}

// PostStatuses are the accepted filters for Posts.
var PostStatuses = []string{"publish", "draft", "pending", "private", "future", "trash", "any"}

// maxPostTypeLen is the longest post type key WordPress registers.
const maxPostTypeLen = 20

var postFields = "ID,post_title,post_status,post_type,post_date"

// Info returns the core version, site URL and title. Facts that fail to
// load are left out rather than failing the call.
func (i *Inspector) Info(ctx context.Context) (*Info, error) {
	version, err := i.raw(ctx, command.New("core.version", "core", "version"))
	if err != nil {
		return nil, err
	}
	url, err := i.option(ctx, "siteurl")
	if err != nil {
		return nil, err
	}
	title, err := i.option(ctx, "blogname")
	if err != nil {
		return nil, err
	}

	info := &Info{Version: version, URL: url, Title: title, Facts: map[string]string{}}

	if v, err := i.raw(ctx, command.New("cli.version", "cli", "version")); err == nil {
		info.Facts["wp_cli"] = strings.TrimPrefix(v, "WP-CLI ")
	}
	if v, err := i.raw(ctx, command.New("php.version", "eval").Arg(command.String("echo PHP_VERSION;"))); err == nil {
		info.Facts["php"] = v
	}
	if v, err := i.raw(ctx, command.New("core.multisite", "eval").Arg(command.String("echo is_multisite() ? 'yes' : 'no';"))); err == nil {
		info.Facts["multisite"] = v
	}
	if v, err := i.raw(ctx, command.New("learndash.version", "eval").Arg(command.String("echo defined('LEARNDASH_VERSION') ? LEARNDASH_VERSION : '';"))); err == nil && v != "" {
		info.Facts["learndash"] = v
	}

	return info, nil
}

// Plugins lists installed plugins, optionally filtered by status.
func (i *Inspector) Plugins(ctx context.Context, status string) ([]Plugin, error) {
	d := command.New("plugin.list", "plugin", "list")
	if status != "" {
		s, err := validate.Literal(status, "status", PluginStatuses...)
		if err != nil {
			return nil, err
		}
		d.Flag("status", command.Enum(s))
	}
	return i.plugins(ctx, d)
}

// Themes lists installed themes.
func (i *Inspector) Themes(ctx context.Context) ([]Theme, error) {
	return i.themes(ctx, command.New("theme.list", "theme", "list"))
}

// Posts lists posts of postType with postStatus, newest first.
func (i *Inspector) Posts(ctx context.Context, postType, postStatus string, limit any) ([]Post, error) {
	d, err := postList(postType, postStatus, limit)
	if err != nil {
		return nil, err
	}
	return i.posts(ctx, d)
}

// SearchPosts runs a full-text search over postType.
func (i *Inspector) SearchPosts(ctx context.Context, query, postType string) ([]Post, error) {
	q, err := validate.String(query, "search", 200)
	if err != nil {
		return nil, err
	}
	d, err := postList(postType, "any", 50)
	if err != nil {
		return nil, err
	}
	d.Flag("s", command.String(q))
	return i.posts(ctx, d)
}

// Post returns every field of one post.
func (i *Inspector) Post(ctx context.Context, id any) (map[string]any, error) {
	n, err := validate.PositiveInt(id, "post_id")
	if err != nil {
		return nil, err
	}
	out, err := i.run.Run(ctx, command.New("post.get", "post", "get").Arg(command.Int(n)), wpcli.FormatJSON)
	if err != nil {
		return nil, err
	}
	post, ok := out.Value.(map[string]any)
	if !ok {
		return map[string]any{"raw": out.Raw}, nil
	}
	return post, nil
}

// CheckUpdates reports pending core, plugin and theme updates.
func (i *Inspector) CheckUpdates(ctx context.Context) (*Updates, error) {
	core, err := i.run.Run(ctx, command.New("core.check-update", "core", "check-update"), wpcli.FormatJSON)
	if err != nil {
		return nil, err
	}

	u := &Updates{}
	for _, row := range core.Array() {
		u.Core = append(u.Core, CoreUpdate{
			Version:    row.Get("version").String(),
			UpdateType: row.Get("update_type").String(),
			PackageURL: row.Get("package_url").String(),
		})
	}

	if u.Plugins, err = i.plugins(ctx, command.New("plugin.updates", "plugin", "list").Flag("update", command.Enum("available"))); err != nil {
		return nil, err
	}
	if u.Themes, err = i.themes(ctx, command.New("theme.updates", "theme", "list").Flag("update", command.Enum("available"))); err != nil {
		return nil, err
	}
	return u, nil
}

func postList(postType, postStatus string, limit any) (*command.Descriptor, error) {
	if postType == "" {
		postType = "post"
	}
	if postStatus == "" {
		postStatus = "publish"
	}
	pt, err := validate.Slug(postType, "post_type", maxPostTypeLen)
	if err != nil {
		return nil, err
	}
	ps, err := validate.Literal(postStatus, "post_status", PostStatuses...)
	if err != nil {
		return nil, err
	}
	n, err := validate.IntRange(limit, "limit", 1, MaxListLimit)
	if err != nil {
		return nil, err
	}
	return command.New("post.list", "post", "list").
		Flag("post_type", command.Enum(pt)).
		Flag("post_status", command.Enum(ps)).
		Flag("posts_per_page", command.Int(n)).
		Flag("fields", command.String(postFields)), nil
}

func (i *Inspector) raw(ctx context.Context, d *command.Descriptor) (string, error) {
	out, err := i.run.Run(ctx, d, wpcli.FormatRaw)
	if err != nil {
		return "", err
	}
	return out.Raw, nil
}

func (i *Inspector) option(ctx context.Context, name string) (string, error) {
	return i.raw(ctx, command.New("option.get", "option", "get").Arg(command.String(name)))
}

func (i *Inspector) plugins(ctx context.Context, d *command.Descriptor) ([]Plugin, error) {
	out, err := i.run.Run(ctx, d, wpcli.FormatJSON)
	if err != nil {
		return nil, err
	}
	var plugins []Plugin
	for _, row := range out.Array() {
		plugins = append(plugins, Plugin(extension(row)))
	}
	return plugins, nil
}

func (i *Inspector) themes(ctx context.Context, d *command.Descriptor) ([]Theme, error) {
	out, err := i.run.Run(ctx, d, wpcli.FormatJSON)
	if err != nil {
		return nil, err
	}
	var themes []Theme
	for _, row := range out.Array() {
		themes = append(themes, Theme(extension(row)))
	}
	return themes, nil
}

func (i *Inspector) posts(ctx context.Context, d *command.Descriptor) ([]Post, error) {
	out, err := i.run.Run(ctx, d, wpcli.FormatJSON)
	if err != nil {
		return nil, err
	}
	var posts []Post
	for _, row := range out.Array() {
		posts = append(posts, Post{
			ID:     int(row.Get("ID").Int()),
			Title:  row.Get("post_title").String(),
			Status: row.Get("post_status").String(),
			Type:   row.Get("post_type").String(),
			Date:   row.Get("post_date").String(),
		})
	}
	return posts, nil
}

type extensionRow struct {
	Name    string
	Status  string
	Update  string
	Version string
}

func extension(row gjson.Result) extensionRow {
	return extensionRow{
		Name:    row.Get("name").String(),
		Status:  row.Get("status").String(),
		Update:  row.Get("update").String(),
		Version: row.Get("version").String(),
	}
}
