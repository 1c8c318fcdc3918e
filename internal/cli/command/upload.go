package command

import (
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/url"
	"os"
	"path/filepath"

	"github.com/urfave/cli/v2"

	"github.com/yndnr/pairmesh-go/internal/cli/connection"
	"github.com/yndnr/pairmesh-go/internal/cli/output"
)

// UploadCommand stores an artifact on the server and announces it to the
// realtime hub.
func UploadCommand() *cli.Command {
	return &cli.Command{
		Name:      "upload",
		Usage:     "Upload an artifact as the paired client",
		ArgsUsage: "FILE (use - for stdin)",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "name",
				Usage: "Artifact name, defaults to the file's base name",
			},
			&cli.BoolFlag{
				Name:  "multipart",
				Usage: "Send the artifact as a multipart form instead of a raw body",
			},
			&cli.BoolFlag{
				Name:  "progress",
				Usage: "Show a progress bar on stderr",
			},
		},
		Action: uploadAction,
	}
}

func uploadAction(c *cli.Context) error {
	if c.NArg() != 1 {
		return errors.New("exactly one file is required")
	}
	client, flags := newClient(c)
	if flags.Session == "" {
		return ErrNoSession
	}

	path := c.Args().First()
	name := c.String("name")

	var (
		body io.Reader
		size int64
	)
	if path == "-" {
		if name == "" {
			return errors.New("--name is required when reading from stdin")
		}
		body = c.App.Reader
		if body == nil {
			body = os.Stdin
		}
	} else {
		f, err := os.Open(path)
		if err != nil {
			return fmt.Errorf("open artifact: %w", err)
		}
		defer f.Close()
		if info, err := f.Stat(); err == nil {
			size = info.Size()
		}
		if name == "" {
			name = filepath.Base(path)
		}
		body = f
	}

	var bar *output.ProgressBar
	if c.Bool("progress") && !flags.Quiet {
		bar = output.NewProgressBar(notices(c, flags), "uploading "+name)
		bar.SetTotal(size)
		body = bar.Reader(body)
	}

	endpoint := "/v1/uploads?name=" + url.QueryEscape(name)
	contentType := "application/octet-stream"
	if c.Bool("multipart") {
		body, contentType = multipartBody(name, body)
	}

	resp, err := client.PostStream(c.Context, endpoint, contentType, body)
	if err != nil {
		return fmt.Errorf("upload artifact: %w", err)
	}
	var result uploadResult
	if err := connection.ParseResponse(resp, &result); err != nil {
		return err
	}
	if bar != nil {
		bar.Finish()
	}
	return printResult(c, flags, result)
}

// multipartBody streams r as the "file" field of a multipart form.
func multipartBody(name string, r io.Reader) (io.Reader, string) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		part, err := mw.CreateFormFile("file", name)
		if err == nil {
			_, err = io.Copy(part, r)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	return pr, mw.FormDataContentType()
}
