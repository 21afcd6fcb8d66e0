package xmlexport

import (
	"encoding/xml"
	"fmt"

	"github.com/google/uuid"

	"github.com/scholarly-tools/doideposit/internal/deposit/domain"
)

// CrossRef deposit schema 4.3.6.
const (
	SchemaVersion  = "4.3.6"
	SchemaNS       = "http://www.crossref.org/schema/4.3.6"
	schemaLocation = "http://www.crossref.org/schema/4.3.6 https://www.crossref.org/schemas/crossref4.3.6.xsd"
	xsiNS          = "http://www.w3.org/2001/XMLSchema-instance"
)

type doiBatch struct {
	XMLName        xml.Name  `xml:"doi_batch"`
	Version        string    `xml:"version,attr"`
	Xmlns          string    `xml:"xmlns,attr"`
	XmlnsXSI       string    `xml:"xmlns:xsi,attr"`
	SchemaLocation string    `xml:"xsi:schemaLocation,attr"`
	Head           head      `xml:"head"`
	Journals       []journal `xml:"body>journal"`
}

type head struct {
	BatchID    string    `xml:"doi_batch_id"`
	Timestamp  string    `xml:"timestamp"`
	Depositor  depositor `xml:"depositor"`
	Registrant string    `xml:"registrant"`
}

type depositor struct {
	Name  string `xml:"depositor_name"`
	Email string `xml:"email_address"`
}

type journal struct {
	Metadata journalMetadata `xml:"journal_metadata"`
	Issue    *journalIssue   `xml:"journal_issue,omitempty"`
	Article  *journalArticle `xml:"journal_article,omitempty"`
}

type journalMetadata struct {
	Language  string `xml:"language,attr,omitempty"`
	FullTitle string `xml:"full_title"`
	Abbrev    string `xml:"abbrev_title,omitempty"`
	ISSN      *issn  `xml:"issn,omitempty"`
}

type issn struct {
	MediaType string `xml:"media_type,attr"`
	Value     string `xml:",chardata"`
}

type journalIssue struct {
	PublicationDate *publicationDate `xml:"publication_date,omitempty"`
	Volume          string           `xml:"journal_volume>volume,omitempty"`
	Issue           string           `xml:"issue,omitempty"`
	DOIData         *doiData         `xml:"doi_data,omitempty"`
}

type journalArticle struct {
	PublicationType string           `xml:"publication_type,attr"`
	Titles          []string         `xml:"titles>title"`
	PublicationDate *publicationDate `xml:"publication_date,omitempty"`
	DOIData         doiData          `xml:"doi_data"`
}

type publicationDate struct {
	MediaType string `xml:"media_type,attr"`
	Month     string `xml:"month"`
	Day       string `xml:"day"`
	Year      string `xml:"year"`
}

type doiData struct {
	DOI      string `xml:"doi"`
	Resource string `xml:"resource"`
}

func newBatch(dep Deployment) doiBatch {
	batchID := uuid.NewString()
	if dep.BatchID != nil {
		batchID = dep.BatchID()
	}
	return doiBatch{
		Version:        SchemaVersion,
		Xmlns:          SchemaNS,
		XmlnsXSI:       xsiNS,
		SchemaLocation: schemaLocation,
		Head: head{
			BatchID:    batchID,
			Timestamp:  dep.now().UTC().Format("20060102150405"),
			Depositor:  depositor{Name: dep.DepositorName, Email: dep.DepositorEmail},
			Registrant: dep.Registrant,
		},
	}
}

func newJournalMetadata(dep Deployment) journalMetadata {
	m := journalMetadata{FullTitle: dep.JournalTitle, Abbrev: dep.JournalAbbrev}
	if dep.ISSN != "" {
		m.ISSN = &issn{MediaType: "electronic", Value: dep.ISSN}
	}
	return m
}

func newPublicationDate(md domain.Metadata) *publicationDate {
	if md.PublishedAt == nil {
		return nil
	}
	t := md.PublishedAt.UTC()
	return &publicationDate{
		MediaType: "online",
		Month:     fmt.Sprintf("%02d", int(t.Month())),
		Day:       fmt.Sprintf("%02d", t.Day()),
		Year:      fmt.Sprintf("%04d", t.Year()),
	}
}

func resolveDOIData(obj *domain.Object, dep Deployment) (doiData, error) {
	doi := dep.doi(obj)
	if doi == "" {
		return doiData{}, fmt.Errorf("%s %s has no DOI", obj.Kind(), obj.ID())
	}
	url := obj.Metadata().URL
	if url == "" {
		return doiData{}, fmt.Errorf("%s %s has no resource URL", obj.Kind(), obj.ID())
	}
	return doiData{DOI: doi, Resource: url}, nil
}

func marshal(batch doiBatch) ([]byte, error) {
	out, err := xml.MarshalIndent(batch, "", "\t")
	if err != nil {
		return nil, err
	}
	return append([]byte(xml.Header), out...), nil
}

// ArticleFilter serializes articles as journal_article entries, one journal element each.
type ArticleFilter struct{}

// Serialize implements Filter.
func (ArticleFilter) Serialize(objects []*domain.Object, dep Deployment) ([]byte, error) {
	batch := newBatch(dep)
	for _, obj := range objects {
		if obj.Kind() != domain.KindArticle {
			return nil, fmt.Errorf("article filter cannot serialize %s %s", obj.Kind(), obj.ID())
		}
		data, err := resolveDOIData(obj, dep)
		if err != nil {
			return nil, err
		}
		md := obj.Metadata()

		j := journal{
			Metadata: newJournalMetadata(dep),
			Article: &journalArticle{
				PublicationType: "full_text",
				Titles:          []string{md.Title},
				PublicationDate: newPublicationDate(md),
				DOIData:         data,
			},
		}
		if md.Volume != "" || md.Number != "" {
			j.Issue = &journalIssue{Volume: md.Volume, Issue: md.Number}
		}
		batch.Journals = append(batch.Journals, j)
	}
	return marshal(batch)
}

// IssueFilter serializes issues as journal_issue entries with their own doi_data.
type IssueFilter struct{}

// Serialize implements Filter.
func (IssueFilter) Serialize(objects []*domain.Object, dep Deployment) ([]byte, error) {
	batch := newBatch(dep)
	for _, obj := range objects {
		if obj.Kind() != domain.KindIssue {
			return nil, fmt.Errorf("issue filter cannot serialize %s %s", obj.Kind(), obj.ID())
		}
		data, err := resolveDOIData(obj, dep)
		if err != nil {
			return nil, err
		}
		md := obj.Metadata()

		batch.Journals = append(batch.Journals, journal{
			Metadata: newJournalMetadata(dep),
			Issue: &journalIssue{
				PublicationDate: newPublicationDate(md),
				Volume:          md.Volume,
				Issue:           md.Number,
				DOIData:         &data,
			},
		})
	}
	return marshal(batch)
}
