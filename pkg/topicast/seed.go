package topicast

import (
	"context"

	"go.uber.org/zap"

	"github.com/topicast/topicast/pkg/topicast/store"
)

type seedSubject struct {
	subject  store.Subject
	chapters []store.Chapter
}

type seedExam struct {
	exam     store.Exam
	subjects []seedSubject
}

func seedData() []seedExam {
	return []seedExam{
		{
			exam: store.Exam{
				Name:        "UPSC",
				FullName:    "Union Public Service Commission",
				Category:    "competitive",
				Description: "Civil Services Examination",
			},
			subjects: []seedSubject{
				{subject: store.Subject{Name: "General Studies", Code: "GS"}},
				{subject: store.Subject{Name: "CSAT", Code: "CSAT"}},
			},
		},
		{
			exam: store.Exam{
				Name:        "CBSE",
				FullName:    "Central Board of Secondary Education",
				Category:    "board",
				Description: "Class 10 and Class 12 Board Exams",
			},
			subjects: []seedSubject{
				{
					subject: store.Subject{Name: "Mathematics", Code: "MATH"},
					chapters: []store.Chapter{
						{Name: "Algebra", WeightageMarks: 15, OrderIndex: 1},
						{Name: "Calculus", WeightageMarks: 20, OrderIndex: 2},
						{Name: "Trigonometry", WeightageMarks: 15, OrderIndex: 3},
						{Name: "Coordinate Geometry", WeightageMarks: 10, OrderIndex: 4},
						{Name: "Statistics", WeightageMarks: 10, OrderIndex: 5},
					},
				},
				{subject: store.Subject{Name: "Physics", Code: "PHY"}},
				{subject: store.Subject{Name: "Chemistry", Code: "CHEM"}},
				{subject: store.Subject{Name: "Biology", Code: "BIO"}},
				{subject: store.Subject{Name: "English", Code: "ENG"}},
			},
		},
		{
			exam: store.Exam{
				Name:        "JEE_MAIN",
				FullName:    "JEE Main",
				Category:    "competitive",
				Description: "Joint Entrance Examination - Main",
			},
			subjects: []seedSubject{
				{
					subject: store.Subject{Name: "Physics", Code: "PHY"},
					chapters: []store.Chapter{
						{Name: "Mechanics", WeightageMarks: 30, OrderIndex: 1},
						{Name: "Thermodynamics", WeightageMarks: 15, OrderIndex: 2},
						{Name: "Electromagnetism", WeightageMarks: 25, OrderIndex: 3},
						{Name: "Optics", WeightageMarks: 15, OrderIndex: 4},
						{Name: "Modern Physics", WeightageMarks: 15, OrderIndex: 5},
					},
				},
				{subject: store.Subject{Name: "Chemistry", Code: "CHEM"}},
				{subject: store.Subject{Name: "Mathematics", Code: "MATH"}},
			},
		},
	}
}

// Seed inserts the baseline exams, subjects and chapters. A store that
// already holds any exam is left untouched.
func (t *Topicast) Seed(ctx context.Context) error {
	exams, err := t.store.ListExams(ctx)
	if err != nil {
		return err
	}
	if len(exams) > 0 {
		t.log.Info("seed skipped, exams already present", zap.Int("exams", len(exams)))
		return nil
	}

	var subjects, chapters int
	data := seedData()
	for _, se := range data {
		examID, err := t.store.UpsertExam(ctx, se.exam)
		if err != nil {
			return err
		}
		for _, ss := range se.subjects {
			subject := ss.subject
			subject.ExamID = examID
			subjectID, err := t.store.UpsertSubject(ctx, subject)
			if err != nil {
				return err
			}
			subjects++
			for _, ch := range ss.chapters {
				ch.SubjectID = subjectID
				if _, err := t.store.UpsertChapter(ctx, ch); err != nil {
					return err
				}
				chapters++
			}
		}
	}

	t.log.Info("seeded baseline data",
		zap.Int("exams", len(data)),
		zap.Int("subjects", subjects),
		zap.Int("chapters", chapters))
	return nil
}
