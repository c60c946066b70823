package main

import (
	"context"

	"github.com/spf13/cobra"
)

var infoCmd = &cobra.Command{
	Use:   "info",
	Short: "Show WordPress version, URL and environment facts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			info, err := s.site.Info(ctx)
			if err != nil {
				return err
			}
			fields := map[string]string{
				"version": info.Version,
				"url":     info.URL,
				"title":   info.Title,
			}
			for k, v := range info.Facts {
				fields[k] = v
			}
			s.out.Section(s.exec.String())
			s.out.Fields(fields)
			return nil
		})
	},
}

var pluginStatus string

var pluginsCmd = &cobra.Command{
	Use:   "plugins",
	Short: "List installed plugins",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			plugins, err := s.site.Plugins(ctx, pluginStatus)
			if err != nil {
				return err
			}
			return s.out.Record(plugins)
		})
	},
}

var themesCmd = &cobra.Command{
	Use:   "themes",
	Short: "List installed themes",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			themes, err := s.site.Themes(ctx)
			if err != nil {
				return err
			}
			return s.out.Record(themes)
		})
	},
}

var (
	postType   string
	postStatus string
	postLimit  int
	postSearch string
)

var postsCmd = &cobra.Command{
	Use:   "posts [post-id]",
	Short: "List or search posts, or show one post",
	Long: `List posts of a type, search them, or show every field of one post.

Examples:
  wpbolt posts --type sfwd-courses --status publish
  wpbolt posts --search "onboarding"
  wpbolt posts 42`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			switch {
			case len(args) == 1:
				post, err := s.site.Post(ctx, parseScalar(args[0]))
				if err != nil {
					return err
				}
				return s.out.Record(post)
			case postSearch != "":
				posts, err := s.site.SearchPosts(ctx, postSearch, postType)
				if err != nil {
					return err
				}
				return s.out.Record(posts)
			default:
				posts, err := s.site.Posts(ctx, postType, postStatus, postLimit)
				if err != nil {
					return err
				}
				return s.out.Record(posts)
			}
		})
	},
}

var updatesCmd = &cobra.Command{
	Use:   "updates",
	Short: "Show pending core, plugin and theme updates",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			updates, err := s.site.CheckUpdates(ctx)
			if err != nil {
				return err
			}
			return s.out.Record(updates)
		})
	},
}

func init() {
	pluginsCmd.Flags().StringVar(&pluginStatus, "status", "", "Filter by status (active, inactive, must-use, dropin, active-network)")

	postsCmd.Flags().StringVar(&postType, "type", "post", "Post type")
	postsCmd.Flags().StringVar(&postStatus, "status", "any", "Post status (publish, draft, pending, private, future, trash, any)")
	postsCmd.Flags().IntVar(&postLimit, "limit", 20, "Maximum number of posts")
	postsCmd.Flags().StringVar(&postSearch, "search", "", "Full-text search query")
}
