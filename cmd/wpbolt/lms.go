package main

import (
	"context"

	"github.com/spf13/cobra"

	"github.com/eugenetaranov/wpbolt/internal/lms"
)

var courseCmd = &cobra.Command{
	Use:   "course",
	Short: "Create, update, delete and list courses",
}

var courseIn struct {
	title, content, status, priceType string
	price                             float64
	certificate, points               int
	prerequisites                     []int
	force                             bool
}

var courseList struct {
	status string
	limit  int
}

var courseCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a course",
	Long: `Create a LearnDash course and write its settings.

Examples:
  wpbolt course create --title "Intro to Go" --status publish
  wpbolt course create --title "Advanced Go" --price-type paynow --price 49.99 --prerequisite 12`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := lms.CourseInput{
			Title:         courseIn.title,
			Content:       courseIn.content,
			Status:        courseIn.status,
			PriceType:     courseIn.priceType,
			CertificateID: courseIn.certificate,
			Prerequisites: courseIn.prerequisites,
		}
		if cmd.Flags().Changed("price") {
			in.Price = &courseIn.price
		}
		if cmd.Flags().Changed("points") {
			in.Points = &courseIn.points
		}
		return withSession(func(ctx context.Context, s *session) error {
			rec, err := s.lms.CreateCourse(ctx, in)
			if err != nil {
				return err
			}
			return s.out.Record(rec)
		})
	},
}

var courseUpdateCmd = &cobra.Command{
	Use:   "update <course-id>",
	Short: "Update selected course fields",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		var up lms.CourseUpdate
		flags := cmd.Flags()
		if flags.Changed("title") {
			up.Title = &courseIn.title
		}
		if flags.Changed("content") {
			up.Content = &courseIn.content
		}
		if flags.Changed("status") {
			up.Status = &courseIn.status
		}
		if flags.Changed("price-type") {
			up.PriceType = &courseIn.priceType
		}
		if flags.Changed("price") {
			up.Price = &courseIn.price
		}
		return withSession(func(ctx context.Context, s *session) error {
			rec, err := s.lms.UpdateCourse(ctx, parseScalar(args[0]), up)
			if err != nil {
				return err
			}
			return s.out.Record(rec)
		})
	},
}

var courseDeleteCmd = &cobra.Command{
	Use:   "delete <course-id>",
	Short: "Trash a course, or delete it permanently with --force",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			res, err := s.lms.DeleteCourse(ctx, parseScalar(args[0]), courseIn.force)
			if err != nil {
				return err
			}
			return s.out.Record(res)
		})
	},
}

var courseListCmd = &cobra.Command{
	Use:   "list",
	Short: "List courses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			courses, err := s.lms.ListCourses(ctx, courseList.status, courseList.limit)
			if err != nil {
				return err
			}
			return s.out.Record(courses)
		})
	},
}

var courseLessonsCmd = &cobra.Command{
	Use:   "lessons <course-id>",
	Short: "List the lessons of a course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			lessons, err := s.lms.ListLessons(ctx, parseScalar(args[0]))
			if err != nil {
				return err
			}
			return s.out.Record(lessons)
		})
	},
}

var lessonIn struct {
	course                 int
	title, content, status string
	order                  int
	sample                 bool
}

var lessonCmd = &cobra.Command{
	Use:   "lesson",
	Short: "Manage lessons",
}

var lessonCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a lesson inside a course",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := lms.LessonInput{
			CourseID: lessonIn.course,
			Title:    lessonIn.title,
			Content:  lessonIn.content,
			Status:   lessonIn.status,
			Sample:   lessonIn.sample,
		}
		if cmd.Flags().Changed("order") {
			in.Order = &lessonIn.order
		}
		return withSession(func(ctx context.Context, s *session) error {
			rec, err := s.lms.CreateLesson(ctx, in)
			if err != nil {
				return err
			}
			return s.out.Record(rec)
		})
	},
}

var quizIn struct {
	course, lesson, certificate int
	title, description          string
	passing, attempts           int
}

var quizCmd = &cobra.Command{
	Use:   "quiz",
	Short: "Manage quizzes",
}

var quizCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a quiz in a course or lesson",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := lms.QuizInput{
			CourseID:      quizIn.course,
			LessonID:      quizIn.lesson,
			Title:         quizIn.title,
			Description:   quizIn.description,
			CertificateID: quizIn.certificate,
			Attempts:      quizIn.attempts,
		}
		if cmd.Flags().Changed("passing-score") {
			in.PassingScore = &quizIn.passing
		}
		return withSession(func(ctx context.Context, s *session) error {
			rec, err := s.lms.CreateQuiz(ctx, in)
			if err != nil {
				return err
			}
			return s.out.Record(rec)
		})
	},
}

var groupIn struct {
	title, description string
	courses            []string
}

var groupCmd = &cobra.Command{
	Use:   "group",
	Short: "Manage groups",
}

var groupCreateCmd = &cobra.Command{
	Use:   "create",
	Short: "Create a group and attach courses",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		in := lms.GroupInput{
			Title:       groupIn.title,
			Description: groupIn.description,
			CourseIDs:   parseScalars(groupIn.courses),
		}
		return withSession(func(ctx context.Context, s *session) error {
			rec, err := s.lms.CreateGroup(ctx, in)
			if err != nil {
				return err
			}
			return s.out.Record(rec)
		})
	},
}

var groupAddCmd = &cobra.Command{
	Use:   "add <group-id> <user-id> [user-id ...]",
	Short: "Add users to a group",
	Args:  cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			groupID := parseScalar(args[0])
			if len(args) == 2 {
				res, err := s.lms.AddUserToGroup(ctx, parseScalar(args[1]), groupID)
				if err != nil {
					return err
				}
				return s.out.Record(res)
			}
			report, err := s.lms.BulkAddToGroup(ctx, parseScalars(args[1:]), groupID)
			return finishBulk(s, "group-add", report, err)
		})
	},
}

var enrollCmd = &cobra.Command{
	Use:   "enroll <course-id> <user-id> [user-id ...]",
	Short: "Enroll users in a course",
	Long: `Enroll one user, or many under the circuit breaker.

Examples:
  wpbolt enroll 42 7
  wpbolt enroll 42 7 8 9 10`,
	Args: cobra.MinimumNArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			courseID := parseScalar(args[0])
			if len(args) == 2 {
				res, err := s.lms.EnrollUser(ctx, parseScalar(args[1]), courseID)
				if err != nil {
					return err
				}
				return s.out.Record(res)
			}
			report, err := s.lms.BulkEnroll(ctx, parseScalars(args[1:]), courseID)
			return finishBulk(s, "enroll", report, err)
		})
	},
}

var unenrollCmd = &cobra.Command{
	Use:   "unenroll <course-id> <user-id>",
	Short: "Remove a user's access to a course",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			res, err := s.lms.UnenrollUser(ctx, parseScalar(args[1]), parseScalar(args[0]))
			if err != nil {
				return err
			}
			return s.out.Record(res)
		})
	},
}

var studentsCmd = &cobra.Command{
	Use:   "students <course-id>",
	Short: "List users enrolled in a course",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return withSession(func(ctx context.Context, s *session) error {
			students, err := s.lms.CourseStudents(ctx, parseScalar(args[0]))
			if err != nil {
				return err
			}
			return s.out.Record(students)
		})
	},
}

func init() {
	for _, c := range []*cobra.Command{courseCreateCmd, courseUpdateCmd} {
		c.Flags().StringVar(&courseIn.title, "title", "", "Course title")
		c.Flags().StringVar(&courseIn.content, "content", "", "Course description")
		c.Flags().StringVar(&courseIn.status, "status", "", "publish, draft or private (default draft)")
		c.Flags().StringVar(&courseIn.priceType, "price-type", "", "open, free, paynow, subscribe or closed (default open)")
		c.Flags().Float64Var(&courseIn.price, "price", 0, "Course price")
	}
	_ = courseCreateCmd.MarkFlagRequired("title")
	courseCreateCmd.Flags().IntVar(&courseIn.certificate, "certificate", 0, "Certificate ID")
	courseCreateCmd.Flags().IntVar(&courseIn.points, "points", 0, "Points awarded on completion")
	courseCreateCmd.Flags().IntSliceVar(&courseIn.prerequisites, "prerequisite", nil, "Prerequisite course ID (repeatable)")

	courseDeleteCmd.Flags().BoolVar(&courseIn.force, "force", false, "Delete permanently instead of trashing")

	courseListCmd.Flags().StringVar(&courseList.status, "status", "any", "Course status")
	courseListCmd.Flags().IntVar(&courseList.limit, "limit", 20, "Maximum number of courses")

	courseCmd.AddCommand(courseCreateCmd, courseUpdateCmd, courseDeleteCmd, courseListCmd, courseLessonsCmd)

	lessonCreateCmd.Flags().IntVar(&lessonIn.course, "course", 0, "Course ID")
	lessonCreateCmd.Flags().StringVar(&lessonIn.title, "title", "", "Lesson title")
	lessonCreateCmd.Flags().StringVar(&lessonIn.content, "content", "", "Lesson content")
	lessonCreateCmd.Flags().StringVar(&lessonIn.status, "status", "", "publish or draft (default draft)")
	lessonCreateCmd.Flags().IntVar(&lessonIn.order, "order", 0, "Position within the course")
	lessonCreateCmd.Flags().BoolVar(&lessonIn.sample, "sample", false, "Make the lesson a free preview")
	_ = lessonCreateCmd.MarkFlagRequired("course")
	_ = lessonCreateCmd.MarkFlagRequired("title")
	lessonCmd.AddCommand(lessonCreateCmd)

	quizCreateCmd.Flags().IntVar(&quizIn.course, "course", 0, "Course ID")
	quizCreateCmd.Flags().IntVar(&quizIn.lesson, "lesson", 0, "Lesson ID")
	quizCreateCmd.Flags().StringVar(&quizIn.title, "title", "", "Quiz title")
	quizCreateCmd.Flags().StringVar(&quizIn.description, "description", "", "Quiz description")
	quizCreateCmd.Flags().IntVar(&quizIn.passing, "passing-score", lms.DefaultPassingScore, "Passing percentage (0-100)")
	quizCreateCmd.Flags().IntVar(&quizIn.attempts, "attempts", 0, "Allowed attempts (0 = unlimited)")
	quizCreateCmd.Flags().IntVar(&quizIn.certificate, "certificate", 0, "Certificate ID")
	_ = quizCreateCmd.MarkFlagRequired("course")
	_ = quizCreateCmd.MarkFlagRequired("title")
	quizCmd.AddCommand(quizCreateCmd)

	groupCreateCmd.Flags().StringVar(&groupIn.title, "title", "", "Group title")
	groupCreateCmd.Flags().StringVar(&groupIn.description, "description", "", "Group description")
	groupCreateCmd.Flags().StringSliceVar(&groupIn.courses, "course", nil, "Course ID to attach (repeatable)")
	_ = groupCreateCmd.MarkFlagRequired("title")
	groupCmd.AddCommand(groupCreateCmd, groupAddCmd)
}
